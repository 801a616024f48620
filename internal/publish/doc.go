// Package publish ships a finished build to AWS.
//
// The archive lands at s3://{bucket}/{prefix}/{sha256}.zip. With SiteFiles
// every output file is also uploaded under {prefix}/site/ carrying the same
// Cache-Control the preview server sends. With a signing key the archive
// digest is signed by KMS and the signature stored next to the archive as
// {sha256}.zip.sig. The release hash is written to an SSM parameter last,
// so a reader of the parameter never sees a hash whose objects are missing.
package publish
