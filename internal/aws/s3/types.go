package s3

import "time"

type S3Bucket struct {
	Name      string
	Region    string
	CreatedAt time.Time
}

// ARN returns the bucket's ARN.
func (b S3Bucket) ARN() string {
	return "arn:aws:s3:::" + b.Name
}
