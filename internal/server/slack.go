package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"tasnim.dev/cloud-gatekeeper/internal/constants"
	"tasnim.dev/cloud-gatekeeper/internal/logging"
	"tasnim.dev/cloud-gatekeeper/internal/notify"
	"tasnim.dev/cloud-gatekeeper/internal/orchestrator"
)

const slackDenyReason = "Denied via Slack"

// verifySlack checks the Slack request signature and restores the body for
// the next handler. It is a no-op without a signing secret.
func (s *Server) verifySlack(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, constants.MaxRequestBodySize))
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "could not read body")
			return
		}

		if s.signingSecret != "" {
			sv, err := slack.NewSecretsVerifier(r.Header, s.signingSecret)
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "missing or stale signature")
				return
			}
			if _, err := sv.Write(body); err != nil {
				writeMessage(w, http.StatusUnauthorized, "invalid signature")
				return
			}
			if err := sv.Ensure(); err != nil {
				writeMessage(w, http.StatusUnauthorized, "invalid signature")
				return
			}
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// handleInteraction turns approve/deny button clicks into decisions. The
// clicking user is the approver.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid form body")
		return
	}

	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(r.PostForm.Get("payload")), &cb); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if cb.Type != slack.InteractionTypeBlockActions || len(cb.ActionCallback.BlockActions) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	action := cb.ActionCallback.BlockActions[0]
	in := orchestrator.DecideInput{
		RequestID:  action.Value,
		ApproverID: cb.User.ID,
	}
	switch action.ActionID {
	case notify.ActionApprove:
		in.Action = orchestrator.ActionApprove
	case notify.ActionDeny:
		in.Action = orchestrator.ActionReject
		in.Reason = slackDenyReason
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	log := logging.WithRequest(logging.FromContext(r.Context()), in.RequestID).With().
		Str("user", in.ApproverID).
		Str("action_id", action.ActionID).
		Logger()

	if _, err := s.gk.Decide(r.Context(), in); err != nil {
		log.Warn().Err(err).Msg("slack decision failed")
		s.reply(r.Context(), cb.User.ID, fmt.Sprintf("Could not record your decision on %s: %s", in.RequestID, userMessage(err)))
	} else {
		log.Info().Msg("slack decision recorded")
		s.reply(r.Context(), cb.User.ID, decisionConfirmation(in))
	}

	w.WriteHeader(http.StatusOK)
}

// handleEvent answers URL verification and turns mentions and direct
// messages into access requests.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "could not read body")
		return
	}

	ev, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid event")
		return
	}

	switch ev.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid challenge")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"challenge": challenge.Challenge})
		return
	case slackevents.CallbackEvent:
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	// Slack redelivers events it thinks timed out; the first delivery is
	// already being handled.
	if r.Header.Get("X-Slack-Retry-Num") != "" {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	var user, channel, text string
	switch inner := ev.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if inner.BotID == "" {
			user, channel, text = inner.User, inner.Channel, inner.Text
		}
	case *slackevents.MessageEvent:
		if inner.ChannelType == "im" && inner.BotID == "" && inner.SubType == "" {
			user, channel, text = inner.User, inner.Channel, inner.Text
		}
	}
	if user != "" {
		s.intakeFromSlack(r.Context(), user, channel, text)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) intakeFromSlack(ctx context.Context, user, channel, text string) {
	req, err := s.gk.Intake(ctx, user, text)
	if err != nil {
		log := logging.FromContext(ctx)
		log.Warn().Err(err).Str("user", user).Msg("slack intake failed")
		if errors.Is(err, orchestrator.ErrNotFound) {
			s.reply(ctx, channel, fmt.Sprintf("<@%s> I don't know you yet. Ask a cloud admin to register you.", user))
			return
		}
		s.reply(ctx, channel, fmt.Sprintf("<@%s> Sorry, your request could not be recorded.", user))
		return
	}

	s.reply(ctx, channel, fmt.Sprintf("<@%s> Your access request for project *%s* was submitted (id `%s`). A cloud admin will review it.",
		user, req.Project, req.ID))
}

func (s *Server) reply(ctx context.Context, channel, text string) {
	if s.chat == nil || channel == "" {
		return
	}
	if err := s.chat.Send(context.WithoutCancel(ctx), channel, text, nil); err != nil {
		log := logging.FromContext(ctx)
		log.Error().Err(err).Str("channel", channel).Msg("slack reply failed")
	}
}

func decisionConfirmation(in orchestrator.DecideInput) string {
	if in.Action == orchestrator.ActionApprove {
		return fmt.Sprintf("Access request %s approved!", in.RequestID)
	}
	return fmt.Sprintf("Access request %s denied.", in.RequestID)
}

// userMessage hides internal errors from chat users.
func userMessage(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}
