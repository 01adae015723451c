// Package domain models earthquake event lists published by the Japan
// Meteorological Agency (JMA) and the USGS summary feeds, and turns them into
// map points filtered by magnitude.
//
// # Data Source
//
// JMA publishes the recent event list at
// https://www.jma.go.jp/bosai/quake/data/list.json as a JSON array of flat,
// string-typed records. The fields used here:
//
//	eid     event id, the origin time as YYYYMMDDhhmmss ("20231107185949")
//	at      origin time, RFC 3339 with +09:00 offset
//	anm     epicentre area name in Japanese ("和歌山県北部")
//	en_anm  epicentre area name in English ("Northern Wakayama Prefecture")
//	cod     packed hypocentre coordinate (see below)
//	mag     magnitude as a string ("2.2")
//	maxi    maximum observed seismic intensity
//
// Every other member (acd, ctt, ift, int, json, rdt, ser, ttl, en_ttl, ...) is
// carried through untouched in [QuakeRecord.Fields].
//
// USGS summary feeds (https://earthquake.usgs.gov/earthquakes/feed/) are GeoJSON.
// The feed adapter rewrites each feature into the JMA record shape so both
// sources share one parser.
//
// # Packed Coordinates
//
// The cod field follows ISO 6709 in decimal degrees:
//
//	"<sign><lat><sign><lon>[<sign><elevation>]/"  →  e.g. "+35.7+139.8-10000/"
//
// Latitude and longitude are degrees. The optional third token is the
// hypocentre elevation in metres, so it is negative below sea level: "-10000"
// means 10 km deep and "+0" means very shallow. Hypocentres that are still
// being determined publish an empty cod. Parsed by [ParseHypocenter].
//
// # Magnitude
//
// Magnitudes are decimal strings. JMA publishes "Ｍ不明" (full-width M)
// when the magnitude is not yet determined. Unknown magnitudes cannot be
// bucketed, so those records are dropped.
//
// # Buckets
//
// The map slider selects one half-open magnitude range from the fixed
// thresholds 2, 2.5, 3, ..., 8. Index i covers [thresholds[i], thresholds[i+1]),
// and the last index has no upper bound. See [BucketAt].
//
// # ID Generation
//
// Quake IDs are "<source>-<eid>". Records without an eid fall back to a
// SHA-256 prefix of source|cod|at|mag so reprocessing the same record yields
// the same ID. See [generateID].
package domain
