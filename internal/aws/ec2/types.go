package ec2

import "fmt"

// EC2Instance represents a single EC2 instance.
type EC2Instance struct {
	Name       string
	InstanceID string
	OwnerID    string
	State      string
}

// ARN returns the instance ARN in the given region. The owner account of the
// reservation is used unless it is empty, in which case account is used.
func (i EC2Instance) ARN(region, account string) string {
	if i.OwnerID != "" {
		account = i.OwnerID
	}
	return fmt.Sprintf("arn:aws:ec2:%s:%s:instance/%s", region, account, i.InstanceID)
}
