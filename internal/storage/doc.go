// Package storage provides directory write capabilities over local disk,
// Amazon S3 and Google Cloud Storage, plus the commit, ingest and export
// operations the pipeline runs against them.
package storage
