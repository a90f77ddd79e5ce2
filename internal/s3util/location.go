// Package s3util holds small S3 helpers shared by the commands: object
// addressing and staging local files into a bucket.
package s3util

import "strings"

// Scheme is the URI scheme MediaConvert expects for S3 locations.
const Scheme = "s3"

// ObjectURI returns s3://bucket/path. A leading slash on path is dropped.
func ObjectURI(bucket, path string) string {
	return Scheme + "://" + bucket + "/" + strings.TrimPrefix(path, "/")
}
