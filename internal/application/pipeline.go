// Package application contains the relay's use-case services: the inbound
// message pipeline, webhook verification, context assembly and metering.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

// State is a step of the message pipeline.
type State string

const (
	StateResolving       State = "RESOLVING"
	StateEnablementCheck State = "ENABLEMENT_CHECK"
	StateCreditCheck     State = "CREDIT_CHECK"
	StateContextBuild    State = "CONTEXT_BUILD"
	StateCompletion      State = "COMPLETION"
	StateDispatch        State = "DISPATCH"
	StateLog             State = "LOG"
	StateMeterUpdate     State = "METER_UPDATE"
	StateDone            State = "DONE"
	StateDropped         State = "DROPPED"
)

// DropReason says why a run ended in StateDropped.
type DropReason string

const (
	ReasonTenantNotFound      DropReason = "tenant_not_found"
	ReasonTenantLookupFailed  DropReason = "tenant_lookup_failed"
	ReasonTenantDisabled      DropReason = "tenant_disabled"
	ReasonOriginNotAllowed    DropReason = "origin_not_allowed"
	ReasonInsufficientCredits DropReason = "insufficient_credits"
	ReasonMissingProviderKey  DropReason = "missing_provider_key"
	ReasonMissingAccessToken  DropReason = "missing_access_token"
	ReasonCompletionFailed    DropReason = "completion_failed"
	ReasonDispatchFailed      DropReason = "dispatch_failed"
	ReasonPanic               DropReason = "panic"
)

// Default step timeouts.
const (
	DefaultCompletionTimeout = 9 * time.Second
	DefaultDispatchTimeout   = 5 * time.Second
)

// Result is the outcome of one pipeline run.
type Result struct {
	EventID   string
	State     State // StateDone or StateDropped.
	LastState State // Last state entered before the terminal one.
	Reason    DropReason
	Err       error
	Reply     string
	Tenant    *model.Tenant
}

// Dropped reports whether the run ended without completing.
func (r Result) Dropped() bool {
	return r.State == StateDropped
}

// IsPrecondition reports whether a run was dropped for missing configuration
// rather than a provider or store failure.
func (r Result) IsPrecondition() bool {
	return errors.Is(r.Err, driven.ErrMissingAPIKey) || errors.Is(r.Err, driven.ErrMissingAccessToken)
}

// transition is what a step hands back to the run loop: the next state, or a
// drop with an optional cause.
type transition struct {
	next   State
	reason DropReason
	err    error
}

func next(s State) transition           { return transition{next: s} }
func drop(reason DropReason) transition { return transition{next: StateDropped, reason: reason} }
func fail(reason DropReason, err error) transition {
	return transition{next: StateDropped, reason: reason, err: err}
}

// run is the mutable state of a single event moving through the pipeline.
type run struct {
	event       model.InboundEvent
	logger      *slog.Logger
	tenant      *model.Tenant
	apiKey      string
	accessToken string
	contextText string
	reply       string
}

// PipelineConfig holds the pipeline's tunables.
type PipelineConfig struct {
	// FallbackAPIKey is the process-wide provider key used when a tenant has
	// none.
	FallbackAPIKey    string
	CompletionTimeout time.Duration
	DispatchTimeout   time.Duration
}

// Pipeline moves inbound events through resolution, gating, completion,
// dispatch, logging and metering. Messaging events run in the background via
// Submit; widget events run synchronously via Run.
type Pipeline struct {
	tenants    driven.TenantStore
	vault      driven.SecretVault
	assembler  *ContextAssembler
	completion driven.CompletionClient
	messenger  driven.MessengerClient
	meter      *UsageMeter
	observer   driven.PipelineObserver
	cfg        PipelineConfig
	logger     *slog.Logger

	inflight sync.WaitGroup
}

// NewPipeline creates a new Pipeline with all required dependencies. Zero
// timeouts select the defaults.
func NewPipeline(
	tenants driven.TenantStore,
	vault driven.SecretVault,
	assembler *ContextAssembler,
	completion driven.CompletionClient,
	messenger driven.MessengerClient,
	meter *UsageMeter,
	observer driven.PipelineObserver,
	cfg PipelineConfig,
	logger *slog.Logger,
) *Pipeline {
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = DefaultCompletionTimeout
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultDispatchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Pipeline{
		tenants:    tenants,
		vault:      vault,
		assembler:  assembler,
		completion: completion,
		messenger:  messenger,
		meter:      meter,
		observer:   observer,
		cfg:        cfg,
		logger:     logger,
	}
}

// Submit runs a messaging event in the background, detached from ctx's
// cancellation, and returns immediately.
func (p *Pipeline) Submit(ctx context.Context, event model.InboundEvent) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.Run(context.WithoutCancel(ctx), event)
	}()
}

// Drain blocks until every submitted event has finished or ctx is done.
func (p *Pipeline) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain pipeline: %w", ctx.Err())
	}
}

// Run drives one event through the state machine and returns its outcome.
// It never panics; a panic inside a step ends the run as dropped.
func (p *Pipeline) Run(ctx context.Context, event model.InboundEvent) (res Result) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	ctx, trace := p.observer.StartRun(ctx, event.Channel, event.ID)
	r := &run{
		event:  event,
		logger: p.logger.With("event_id", event.ID, "channel", event.Channel),
	}
	res = Result{EventID: event.ID}

	defer func() {
		if rec := recover(); rec != nil {
			res.State = StateDropped
			res.Reason = ReasonPanic
			res.Err = fmt.Errorf("pipeline panic in %s: %v", res.LastState, rec)
		}
		res.Tenant = r.tenant
		p.finish(r, res, trace)
	}()

	state := StateResolving
	for state != StateDone && state != StateDropped {
		trace.Enter(string(state))
		res.LastState = state

		t := p.step(ctx, state, r)
		if t.next == StateDropped {
			res.State = StateDropped
			res.Reason = t.reason
			res.Err = t.err
			return res
		}
		state = t.next
	}

	res.State = StateDone
	res.Reply = r.reply
	return res
}

// finish logs the outcome and closes the trace.
func (p *Pipeline) finish(r *run, res Result, trace driven.RunTrace) {
	var tenantID string
	if r.tenant != nil {
		tenantID = r.tenant.ID
	}

	switch {
	case res.Err != nil:
		r.logger.Error("event failed", "state", res.LastState, "reason", res.Reason, "tenant_id", tenantID, "error", res.Err)
	case res.State == StateDropped:
		r.logger.Info("event dropped", "state", res.LastState, "reason", res.Reason, "tenant_id", tenantID)
	default:
		r.logger.Debug("event done", "tenant_id", tenantID)
	}

	trace.End(driven.RunOutcome{
		Channel:   r.event.Channel,
		EventID:   r.event.ID,
		TenantID:  tenantID,
		State:     string(res.State),
		LastState: string(res.LastState),
		Reason:    string(res.Reason),
		Err:       res.Err,
	})
}

func (p *Pipeline) step(ctx context.Context, state State, r *run) transition {
	switch state {
	case StateResolving:
		return p.resolve(ctx, r)
	case StateEnablementCheck:
		return p.checkEnablement(r)
	case StateCreditCheck:
		return p.checkCredits(r)
	case StateContextBuild:
		return p.buildContext(ctx, r)
	case StateCompletion:
		return p.complete(ctx, r)
	case StateDispatch:
		return p.dispatch(ctx, r)
	case StateLog:
		return p.logActivity(ctx, r)
	case StateMeterUpdate:
		return p.updateMeter(ctx, r)
	default:
		return fail(ReasonPanic, fmt.Errorf("unknown pipeline state %q", state))
	}
}

func (p *Pipeline) resolve(ctx context.Context, r *run) transition {
	var (
		tenant *model.Tenant
		err    error
	)
	if r.event.Channel == model.ChannelWidget {
		tenant, err = p.tenants.GetByWidgetKey(ctx, r.event.WidgetKey)
	} else {
		tenant, err = p.tenants.GetByExternalID(ctx, r.event.ExternalID)
	}
	if err != nil {
		return fail(ReasonTenantLookupFailed, err)
	}
	if tenant == nil {
		r.logger.Debug("no tenant for event", "external_id", r.event.ExternalID)
		return drop(ReasonTenantNotFound)
	}

	r.tenant = tenant
	r.logger = r.logger.With("tenant_id", tenant.ID)
	r.logger.Debug("tenant resolved", "tenant", tenant.Name,
		"credits", tenant.Account.Balance(), "elevated", tenant.Account.IsElevated())
	return next(StateEnablementCheck)
}

func (p *Pipeline) checkEnablement(r *run) transition {
	if !r.tenant.Enabled {
		return drop(ReasonTenantDisabled)
	}

	if r.event.Channel == model.ChannelWidget {
		if !originAllowed(r.event.Origin, r.tenant.AllowedOrigins) {
			r.logger.Warn("widget origin not allowed", "origin", r.event.Origin)
			return drop(ReasonOriginNotAllowed)
		}
		return next(StateContextBuild)
	}

	return next(StateCreditCheck)
}

func (p *Pipeline) checkCredits(r *run) transition {
	if !p.meter.CheckCredits(r.tenant.Account) {
		return drop(ReasonInsufficientCredits)
	}
	return next(StateContextBuild)
}

func (p *Pipeline) buildContext(ctx context.Context, r *run) transition {
	var titles []string
	if r.event.Channel == model.ChannelMessaging {
		titles = r.tenant.KnowledgeFilter
	}

	r.contextText = p.assembler.Assemble(ctx, r.tenant.AccountID, titles)
	r.logger.Debug("context assembled", "length", len(r.contextText))

	r.apiKey = p.vault.Decrypt(r.tenant.ProviderKey)
	if r.apiKey == "" {
		r.apiKey = p.cfg.FallbackAPIKey
	}
	if r.apiKey == "" {
		return fail(ReasonMissingProviderKey, driven.ErrMissingAPIKey)
	}

	if r.event.Channel == model.ChannelMessaging {
		r.accessToken = p.vault.Decrypt(r.tenant.AccessToken)
		if r.accessToken == "" {
			return fail(ReasonMissingAccessToken, driven.ErrMissingAccessToken)
		}
	}

	return next(StateCompletion)
}

func (p *Pipeline) complete(ctx context.Context, r *run) transition {
	req := driven.CompletionRequest{
		UserText: r.event.Text,
		Model:    r.tenant.AIModel,
		APIKey:   r.apiKey,
	}
	if r.event.Channel == model.ChannelWidget {
		req.SystemPrompt = widgetSystemPrompt(r.tenant.Name, r.contextText)
		req.Fallback = WidgetFallbackReply
	} else {
		req.SystemPrompt = messagingSystemPrompt(r.tenant.Name, r.contextText)
		req.Fallback = MessagingFallbackReply
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.CompletionTimeout)
	defer cancel()

	reply, err := p.completion.Complete(ctx, req)
	if err != nil {
		return fail(ReasonCompletionFailed, fmt.Errorf("completion: %w", err))
	}

	r.reply = reply
	r.logger.Debug("completion received", "model", req.Model, "reply_length", len(reply))
	return next(StateDispatch)
}

func (p *Pipeline) dispatch(ctx context.Context, r *run) transition {
	// Widget replies travel back in the HTTP response.
	if r.event.Channel == model.ChannelWidget {
		return next(StateLog)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.DispatchTimeout)
	defer cancel()

	reply := model.OutboundReply{RecipientID: r.event.SenderID, Text: r.reply}
	if err := p.messenger.SendText(ctx, r.accessToken, reply.RecipientID, reply.Text); err != nil {
		return fail(ReasonDispatchFailed, fmt.Errorf("dispatch: %w", err))
	}

	r.logger.Debug("reply sent", "recipient", reply.RecipientID)
	return next(StateLog)
}

func (p *Pipeline) logActivity(ctx context.Context, r *run) transition {
	typ := model.ActivityAutoReply
	if r.event.Channel == model.ChannelWidget {
		typ = model.ActivityWidgetReply
	}
	p.meter.LogActivity(ctx, r.tenant.ID, typ, r.event.Text, r.reply)
	return next(StateMeterUpdate)
}

func (p *Pipeline) updateMeter(ctx context.Context, r *run) transition {
	if r.event.Channel == model.ChannelMessaging {
		p.meter.DecrementCredit(ctx, r.tenant.Account)
	}
	return next(StateDone)
}

type nopObserver struct{}

func (nopObserver) StartRun(ctx context.Context, _ model.Channel, _ string) (context.Context, driven.RunTrace) {
	return ctx, nopTrace{}
}

type nopTrace struct{}

func (nopTrace) Enter(string)          {}
func (nopTrace) End(driven.RunOutcome) {}
