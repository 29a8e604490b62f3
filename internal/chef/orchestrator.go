package chef

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/chefbot/internal/store"
	"github.com/mohammad-safakhou/chefbot/provider"
)

// maxToolRounds bounds the model's tool-use loop within one turn.
const maxToolRounds = 6

// SessionStore is the slice of the relational store the orchestrator needs.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (store.Session, error)
	CreateSession(ctx context.Context, sess store.Session) (store.Session, error)
	DeleteSession(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, sessionID, sender, content string) (store.Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]store.Message, error)
}

// ModelClient is the model invocation boundary.
type ModelClient interface {
	ChatCompletion(ctx context.Context, messages []provider.Message, tools []provider.ToolDef) (provider.Message, error)
}

// MemoryBank is the long-term memory boundary.
type MemoryBank interface {
	Search(ctx context.Context, query string, userID *string) string
	Replace(ctx context.Context, sess store.Session, transcript []store.Message) error
	Forget(ctx context.Context, sessionID string) error
}

// ToolRunner exposes the full tool catalog and executes calls by name. The
// capability registry satisfies it; tool availability per turn is decided by
// DispatchTools, not by the runner.
type ToolRunner interface {
	Defs() []provider.ToolDef
	Call(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

// Orchestrator drives one user message to one persisted assistant reply.
type Orchestrator struct {
	Sessions      SessionStore
	Memory        MemoryBank
	Model         ModelClient
	Tools         ToolRunner
	Assembler     Assembler
	FallbackReply string
	Logger        *log.Logger
}

// CreateSessionParams carries validated session-creation input.
type CreateSessionParams struct {
	Name      string
	Persona   string
	DietType  string
	Allergies string
	UserID    *string
}

// CreateSession applies the default sentinels and persists a new session.
func (o *Orchestrator) CreateSession(ctx context.Context, p CreateSessionParams) (store.Session, error) {
	if strings.TrimSpace(p.Name) == "" {
		return store.Session{}, fmt.Errorf("%w: session name is required", ErrValidation)
	}
	if strings.TrimSpace(p.Persona) == "" {
		return store.Session{}, fmt.Errorf("%w: choose a personality", ErrValidation)
	}
	diet := strings.TrimSpace(p.DietType)
	if diet == "" {
		diet = store.DefaultDietType
	}
	allergies := strings.TrimSpace(p.Allergies)
	if allergies == "" {
		allergies = store.DefaultAllergies
	}
	return o.Sessions.CreateSession(ctx, store.Session{
		Name:                p.Name,
		DietType:            diet,
		ExcludedIngredients: allergies,
		Persona:             p.Persona,
		UserID:              p.UserID,
	})
}

// DeleteSession purges the session's memory vectors, then the session itself
// (messages cascade). Callers may only delete sessions in their own scope:
// authenticated users their own, anonymous callers only anonymous sessions.
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID string, userID *string) error {
	sess, err := o.Sessions.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	if userID == nil {
		if sess.UserID != nil {
			return ErrSessionNotFound
		}
	} else if sess.UserID == nil || *sess.UserID != *userID {
		return ErrSessionNotFound
	}
	if err := o.Memory.Forget(ctx, sessionID); err != nil {
		o.logf("forget memory for session %s: %v", sessionID, err)
	}
	return o.Sessions.DeleteSession(ctx, sessionID)
}

// HandleTurn runs the fixed turn pipeline: persist the inbound message,
// retrieve memory, assemble context, dispatch tools, invoke the model,
// persist the reply, refresh memory. Exactly one USER and one AI message are
// persisted per successful call, in that order, even when the model fails.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, userText string) error {
	sess, err := o.Sessions.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}

	// The inbound message is recorded before any fallible stage.
	if _, err := o.Sessions.AppendMessage(ctx, sessionID, store.SenderUser, userText); err != nil {
		return err
	}

	memory := o.Memory.Search(ctx, userText, sess.UserID)

	history, err := o.Sessions.ListMessages(ctx, sessionID)
	if err != nil {
		return err
	}
	msgs := o.Assembler.Assemble(sess, history, memory, userText)

	defs, recipient := DispatchTools(userText, o.Tools.Defs())
	reply := o.converse(ctx, msgs, defs, recipient)

	if _, err := o.Sessions.AppendMessage(ctx, sessionID, store.SenderAI, reply); err != nil {
		return err
	}
	turnsTotal.Inc()

	transcript, err := o.Sessions.ListMessages(ctx, sessionID)
	if err == nil {
		err = o.Memory.Replace(ctx, sess, transcript)
	}
	if err != nil {
		// Best effort: a stale or missing memory snapshot never fails a turn.
		o.logf("refresh memory for session %s: %v", sessionID, err)
	}
	return nil
}

// converse runs the tool-use loop until the model produces text, substituting
// the fixed fallback reply on any model failure.
func (o *Orchestrator) converse(ctx context.Context, msgs []provider.Message, defs []provider.ToolDef, recipient string) string {
	for round := 0; round < maxToolRounds; round++ {
		resp, err := o.Model.ChatCompletion(ctx, msgs, defs)
		if err != nil {
			o.logf("model call failed: %v", err)
			turnFallbacks.Inc()
			return o.FallbackReply
		}
		if len(resp.ToolCalls) == 0 {
			if strings.TrimSpace(resp.Content) == "" {
				turnFallbacks.Inc()
				return o.FallbackReply
			}
			return resp.Content
		}

		msgs = append(msgs, provider.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, tc := range resp.ToolCalls {
			toolCalls.WithLabelValues(tc.Name).Inc()
			msgs = append(msgs, provider.Message{
				Role:       "tool",
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Content:    o.runTool(ctx, tc, recipient),
			})
		}
	}
	o.logf("tool loop exhausted after %d rounds", maxToolRounds)
	turnFallbacks.Inc()
	return o.FallbackReply
}

// runTool executes one requested tool call. Failures are folded into text so
// the model can react; tool responses are strings, never propagated errors.
func (o *Orchestrator) runTool(ctx context.Context, tc provider.ToolCall, recipient string) string {
	var args map[string]interface{}
	if tc.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: invalid tool arguments: %v", err)
		}
	}

	if tc.Name == EmailToolName {
		to, _ := args["to"].(string)
		if recipient == "" || !strings.EqualFold(to, recipient) {
			return "Error: email can only be sent to the address given in the current message."
		}
	}

	result, err := o.Tools.Call(ctx, tc.Name, args)
	if err != nil {
		o.logf("tool %s failed: %v", tc.Name, err)
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
	}
}
