package notify

import (
	"fmt"
	"strings"

	"tasnim.dev/cloud-gatekeeper/internal/access"
	"tasnim.dev/cloud-gatekeeper/internal/utils"
)

const timeLayout = utils.DateTimeSec + " UTC"

// RenderCreated builds the admin notification for a new request, with
// approve and deny buttons carrying the request id.
func RenderCreated(req *access.AccessRequest) Message {
	r := orEmpty(req)

	var b strings.Builder
	b.WriteString("*New Access Request*\n\n")
	fmt.Fprintf(&b, "*Requester:* %s\n", utils.OrDash(r.RequesterEmail))
	fmt.Fprintf(&b, "*Project:* %s\n", utils.OrDash(r.Project))
	fmt.Fprintf(&b, "*Permissions:* %s\n", utils.JoinOrDash(r.Permissions))
	fmt.Fprintf(&b, "*Status:* %s\n", r.Status)
	fmt.Fprintf(&b, "*Requested at:* %s\n\n", utils.TimeOrDash(r.CreatedAt, timeLayout))
	b.WriteString("Please review and approve or reject this request.")

	return Message{
		Text: b.String(),
		Interactive: &Interactive{Actions: []Action{
			{ID: ActionApprove, Label: "Approve", Value: r.ID, Style: StylePrimary},
			{ID: ActionDeny, Label: "Deny", Value: r.ID, Style: StyleDanger},
		}},
	}
}

// RenderApproved builds the requester notification for an approval.
func RenderApproved(req *access.AccessRequest, approverID string) Message {
	r := orEmpty(req)

	var b strings.Builder
	b.WriteString("*Access Request Approved*\n\n")
	fmt.Fprintf(&b, "Your access request for project *%s* has been approved.\n\n", utils.OrDash(r.Project))
	fmt.Fprintf(&b, "*Project:* %s\n", utils.OrDash(r.Project))
	fmt.Fprintf(&b, "*Approved by:* %s\n", utils.OrDash(approverID))
	fmt.Fprintf(&b, "*Approved at:* %s\n\n", utils.TimeOrDash(r.UpdatedAt, timeLayout))
	b.WriteString("Access is being provisioned. Contact the cloud admin team if it does not work shortly.")

	return Message{Text: b.String()}
}

// RenderRejected builds the requester notification for a rejection. The
// reason line is omitted when reason is empty.
func RenderRejected(req *access.AccessRequest, approverID, reason string) Message {
	r := orEmpty(req)

	var b strings.Builder
	b.WriteString("*Access Request Rejected*\n\n")
	fmt.Fprintf(&b, "Your access request for project *%s* has been rejected.\n\n", utils.OrDash(r.Project))
	fmt.Fprintf(&b, "*Project:* %s\n", utils.OrDash(r.Project))
	fmt.Fprintf(&b, "*Rejected by:* %s\n", utils.OrDash(approverID))
	fmt.Fprintf(&b, "*Rejected at:* %s\n", utils.TimeOrDash(r.UpdatedAt, timeLayout))
	if strings.TrimSpace(reason) != "" {
		fmt.Fprintf(&b, "*Reason:* %s\n", reason)
	}
	b.WriteString("\nIf you believe this was an error, contact the cloud admin team.")

	return Message{Text: b.String()}
}

// RenderProvisioningFailed builds the admin notification sent when an
// approved request could not be provisioned.
func RenderProvisioningFailed(req *access.AccessRequest, cause error) Message {
	r := orEmpty(req)

	detail := "unknown error"
	if cause != nil {
		detail = cause.Error()
	}

	var b strings.Builder
	b.WriteString("*Access Provisioning Failed*\n\n")
	fmt.Fprintf(&b, "*Request:* %s\n", utils.OrDash(r.ID))
	fmt.Fprintf(&b, "*Requester:* %s\n", utils.OrDash(r.RequesterEmail))
	fmt.Fprintf(&b, "*Project:* %s\n", utils.OrDash(r.Project))
	fmt.Fprintf(&b, "*Error:* %s\n\n", detail)
	b.WriteString("The request stays approved. Fix the cause and provision manually.")

	return Message{Text: b.String()}
}

func orEmpty(req *access.AccessRequest) *access.AccessRequest {
	if req == nil {
		return &access.AccessRequest{}
	}
	return req
}
