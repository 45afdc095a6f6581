// Package brewery is a small medallion-style batch pipeline for Open Brewery
// DB data. The root package holds the types and interfaces shared by every
// stage, and the stages themselves live in sub-packages.
//
// A run moves through four stages, strictly in order.
//
// 1. Fetch
//
//    The http package issues a GET (or a bounded sequence of paged GETs)
//    against the breweries endpoint and returns the documents as
//    brewery.Records. Records are kept as the raw bytes the API sent; nothing
//    is decoded until a later stage asks for fields. An empty response is not
//    an error, but the driver stops early and reports ErrNoRecords so it can
//    be told apart from a failed request.
//
// 2. Bronze
//
//    The json package writes the fetched records to a single JSON array on
//    disk. Each element is re-indented but otherwise byte-for-byte what the
//    API returned, so key order and number formatting survive.
//
// 3. Silver
//
//    The silver package reads the bronze file back, projects id, name,
//    brewery_type, city and state, drops rows with no state, and writes a
//    Parquet tree partitioned by state (state=CA/part-00000.snappy.parquet).
//
// 4. Gold
//
//    The gold package reads the silver tree, recovering state from the
//    partition directories, and counts rows per (brewery_type, state).
//
// Silver and gold do their work inside an engine.Session, which owns the
// staging directories for in-flight output and removes them on Close, whether
// or not the stage succeeded. Output is committed by swapping the staged tree
// into place, so a re-run over unchanged input overwrites the previous output
// with identical bytes.
package brewery
