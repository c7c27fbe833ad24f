// Package tripflow turns the monthly NYC taxi trip-record files into a
// query-ready Parquet dataset.
//
// # Architecture
//
// A run processes one work unit, a (year, month) pair, in four steps:
//
//  1. source.Fetcher downloads the published file once and caches it under
//     raw_dir. Later runs read the cache.
//  2. validate.Validator maps the file onto the canonical profile schema and
//     drops rows with missing required fields, unparseable timestamps or a
//     pickup outside the work unit's month.
//  3. partition.Writer stages the surviving rows as Parquet files and swaps
//     them into processed_dir/year=<Y>/month=<M>, replacing what was there.
//  4. publish.Publisher optionally mirrors the partition to S3 or GCS.
//
// internal/pipeline composes the steps and returns a models.RunReport; it
// never panics. cmd/tripflow drives one run per selected month.
//
// # Quick Start
//
//	tripflow run --year 2024 --month 3
//	tripflow run --year 2023 --all-months --parallel 4 --report-file runs.jsonl
//	tripflow paths --year 2024 --month 3
//
// # Configuration
//
// Settings come from flags, TRIPFLOW_* environment variables, an optional
// YAML file and built-in defaults, in that order. See pkg/config.
package tripflow
