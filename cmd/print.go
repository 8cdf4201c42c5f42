package cmd

import (
	"io"

	"charm.land/lipgloss/v2"

	"tasnim.dev/cloud-gatekeeper/internal/access"
	"tasnim.dev/cloud-gatekeeper/internal/orchestrator"
	"tasnim.dev/cloud-gatekeeper/internal/resolver"
	"tasnim.dev/cloud-gatekeeper/internal/store"
	"tasnim.dev/cloud-gatekeeper/internal/utils"
)

func printRequest(w io.Writer, req *access.AccessRequest, outcomes []store.Outcome) {
	db := utils.NewDetailBuilder(16, utils.LabelStyle)
	db.Section("Access request")
	db.Row("ID", req.ID)
	db.Row("Status", utils.StatusStyle(string(req.Status)).Render(string(req.Status)))
	db.Row("Requester", req.RequesterID)
	db.Row("Email", req.RequesterEmail)
	db.Row("Project", req.Project)
	db.Row("Permissions", utils.JoinOrDash(req.Permissions))
	db.Row("Approver", req.ApproverID)
	if req.Status == access.StatusRejected {
		db.Row("Reason", req.RejectionReason)
	}
	db.Row("Created", utils.TimeOrDash(req.CreatedAt, utils.DateTimeSec))
	db.Row("Updated", utils.TimeOrDash(req.UpdatedAt, utils.DateTimeSec))

	if len(outcomes) > 0 {
		db.Blank()
		db.Section("Side effects")
		for _, o := range outcomes {
			db.Row(o.Subscriber+"/"+o.Event, outcomeText(o))
		}
	}
	_, _ = lipgloss.Fprint(w, db.String())
}

func outcomeText(o store.Outcome) string {
	if o.OK {
		return utils.StatusStyle("ok").Render("ok")
	}
	return utils.StatusStyle("failed").Render("failed") + " " + o.Detail
}

func printRequests(w io.Writer, reqs []*access.AccessRequest) {
	if len(reqs) == 0 {
		_, _ = lipgloss.Fprintln(w, utils.LabelStyle.Render("No pending requests."))
		return
	}
	rows := make([][]string, 0, len(reqs))
	for _, r := range reqs {
		rows = append(rows, []string{
			r.ID,
			r.RequesterID,
			r.Project,
			utils.JoinOrDash(r.Permissions),
			utils.TimeOrDash(r.CreatedAt, utils.DateTime),
		})
	}
	_, _ = lipgloss.Fprintln(w, utils.Table([]string{"ID", "Requester", "Project", "Permissions", "Created"}, rows))
}

func printUnprovisioned(w io.Writer, items []orchestrator.Unprovisioned) {
	if len(items) == 0 {
		_, _ = lipgloss.Fprintln(w, utils.LabelStyle.Render("Every approved request has been provisioned."))
		return
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		last := "never attempted"
		if item.LastOutcome != nil {
			last = utils.OrDash(item.LastOutcome.Detail) + " (" + utils.TimeOrDash(item.LastOutcome.RecordedAt, utils.DateTime) + ")"
		}
		rows = append(rows, []string{
			item.Request.ID,
			item.Request.RequesterID,
			item.Request.Project,
			utils.OrDash(item.Request.ApproverID),
			last,
		})
	}
	_, _ = lipgloss.Fprintln(w, utils.Table([]string{"ID", "Requester", "Project", "Approver", "Last attempt"}, rows))
}

func printResolved(w io.Writer, project string, res resolver.ResolvedResource, accountID string) {
	db := utils.NewDetailBuilder(16, utils.LabelStyle)
	db.Section("Resolution")
	db.Row("Project", project)
	db.Row("Strategy", utils.StatusStyle(string(res.Strategy)).Render(string(res.Strategy)))
	db.Row("Kind", string(res.Kind))
	db.Row("Name", res.Name)
	db.Row("ARN", res.ARN)
	db.Row("Account", accountID)
	_, _ = lipgloss.Fprint(w, db.String())
}

func printUsers(w io.Writer, users []*access.User) {
	if len(users) == 0 {
		_, _ = lipgloss.Fprintln(w, utils.LabelStyle.Render("No users registered."))
		return
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		admin := ""
		if u.IsAdmin {
			admin = "yes"
		}
		rows = append(rows, []string{u.ID, u.Username, utils.OrDash(u.Email), utils.OrDash(admin)})
	}
	_, _ = lipgloss.Fprintln(w, utils.Table([]string{"ID", "Username", "Email", "Admin"}, rows))
}
