// Package engine implements the tool-call decision pipeline: an ordered
// rule list over security settings, per-agent tool policy, risk
// classification, and the session override, with human-in-the-loop
// escalation for everything the rules cannot settle automatically.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/haasonsaas/warden/internal/audit"
	"github.com/haasonsaas/warden/internal/injection"
	"github.com/haasonsaas/warden/internal/observability"
	"github.com/haasonsaas/warden/internal/policy"
	"github.com/haasonsaas/warden/internal/risk"
	"github.com/haasonsaas/warden/internal/settings"
	"github.com/haasonsaas/warden/pkg/models"
)

// Request is one tool invocation attempt to be decided: the runtime's
// inbound tool-call event. A missing ToolCallID is generated.
type Request = models.ToolCallEvent

// Decision is the pipeline's output for one request. Verdicts Allow and
// Deny are terminal immediately; RequireApproval suspends the call until a
// human resolves it or the pending deadline passes.
type Decision struct {
	// Verdict is the pipeline's own verdict.
	Verdict models.Verdict `json:"verdict"`

	// Rule names the pipeline rule that decided.
	Rule string `json:"rule"`

	// Reason explains the verdict in human-readable form.
	Reason string `json:"reason"`

	// Risk is the risk classification, if any signature matched.
	Risk *risk.Classification `json:"risk,omitempty"`

	// Network is the informational network audit for this call.
	Network risk.NetworkAudit `json:"network"`

	// RequireTypedConfirmation asks the approver to type a confirmation
	// word before approving. Set for Critical risk under
	// requireTypeToCritical; the caller renders the gate.
	RequireTypedConfirmation bool `json:"require_typed_confirmation,omitempty"`

	// ToolCallID echoes the request id, generated when the request had none.
	ToolCallID string `json:"tool_call_id"`

	done  chan struct{}
	final models.Verdict
}

// Wait blocks until the decision is terminal and returns the final verdict.
// Automatic verdicts return immediately; suspended decisions return when a
// human resolves them or the pending deadline denies them. Wait does not
// cancel the pending approval on ctx expiry; the engine's sweeper still
// records the terminal audit entry.
func (d *Decision) Wait(ctx context.Context) (models.Verdict, error) {
	if d.done == nil {
		return d.Verdict, nil
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-d.done:
		return d.final, nil
	}
}

// Pending reports whether the decision is awaiting a human verdict.
func (d *Decision) Pending() bool {
	return d.done != nil
}

// Config assembles an Engine. Zero-value fields get safe defaults.
type Config struct {
	Policies policy.Store
	Settings settings.Store
	Audit    audit.Sink
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Tracer   *observability.Tracer

	// ApprovalTTL bounds how long a call may wait for a human verdict
	// before it is denied by timeout. Default 5m.
	ApprovalTTL time.Duration

	// SweepInterval is how often expired pending approvals are collected.
	// Default 10s.
	SweepInterval time.Duration

	// Clock overrides the wall clock in tests.
	Clock Clock
}

// Engine evaluates tool-call requests. Safe for concurrent use: decisions
// for different calls may interleave, and a call suspended on approval
// never blocks evaluation of the next one.
type Engine struct {
	policies policy.Store
	store    settings.Store
	sink     audit.Sink
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer

	override    *Override
	pending     *pendingTable
	now         Clock
	approvalTTL time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an Engine and starts its pending-approval sweeper.
func New(cfg Config) *Engine {
	if cfg.Policies == nil {
		cfg.Policies = policy.NewMemoryStore()
	}
	if cfg.Settings == nil {
		cfg.Settings = settings.StaticStore{Settings: settings.Conservative()}
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NewMemorySink()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.LogConfig{})
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics(prometheus.NewRegistry())
	}
	if cfg.Tracer == nil {
		cfg.Tracer, _ = observability.NewTracer(observability.TraceConfig{})
	}
	if cfg.ApprovalTTL <= 0 {
		cfg.ApprovalTTL = 5 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	e := &Engine{
		policies:    cfg.Policies,
		store:       cfg.Settings,
		sink:        cfg.Audit,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		tracer:      cfg.Tracer,
		override:    NewOverrideWithClock(cfg.Clock),
		pending:     newPendingTable(),
		now:         cfg.Clock,
		approvalTTL: cfg.ApprovalTTL,
		stop:        make(chan struct{}),
	}

	e.wg.Add(1)
	go e.sweepLoop(cfg.SweepInterval)
	return e
}

// Override returns the engine's session override tracker.
func (e *Engine) Override() *Override {
	return e.override
}

// PendingCount returns the number of calls awaiting a human verdict.
func (e *Engine) PendingCount() int {
	return e.pending.size()
}

// Close stops the sweeper. Pending decisions are left in place; callers
// that need them terminal should resolve or let the TTL handle them before
// shutdown.
func (e *Engine) Close() {
	e.stopOnce.Do(func() {
		close(e.stop)
	})
	e.wg.Wait()
}

// ruleInput carries everything a pipeline rule may consult. Built once per
// decision so every rule sees the same settings snapshot.
type ruleInput struct {
	settings       settings.Settings
	risk           *risk.Classification
	command        string
	overrideActive bool
	privEscalation bool
	fsWrite        bool
	approvalFloor  bool
}

// ruleOutcome is a short-circuit result from one rule.
type ruleOutcome struct {
	verdict models.Verdict
	reason  string
	pattern string
}

type pipelineRule struct {
	name string
	eval func(in ruleInput) *ruleOutcome
}

// pipelineRules run in order; the first non-nil outcome is terminal. The
// order is the contract: an active override is consulted before read-only
// and auto-deny rules, the denylist beats the allowlist, and the allowlist
// only auto-approves calls with no risk classification at all and with
// every chained segment allowlisted.
var pipelineRules = []pipelineRule{
	{name: "session_override", eval: func(in ruleInput) *ruleOutcome {
		if !in.overrideActive {
			return nil
		}
		if in.settings.AutoDenyPrivilegeEscalation && in.privEscalation {
			return nil
		}
		return &ruleOutcome{verdict: models.VerdictAllow, reason: "session override active"}
	}},
	{name: "read_only_projects", eval: func(in ruleInput) *ruleOutcome {
		if !in.settings.ReadOnlyProjects || !in.fsWrite {
			return nil
		}
		return &ruleOutcome{verdict: models.VerdictDeny, reason: "filesystem writes are disabled"}
	}},
	{name: "privilege_escalation", eval: func(in ruleInput) *ruleOutcome {
		if !in.settings.AutoDenyPrivilegeEscalation || !in.privEscalation {
			return nil
		}
		return &ruleOutcome{verdict: models.VerdictDeny, reason: "privilege escalation is auto-denied"}
	}},
	{name: "critical_risk", eval: func(in ruleInput) *ruleOutcome {
		if !in.settings.AutoDenyCritical || in.risk == nil || in.risk.Level != models.SeverityCritical {
			return nil
		}
		return &ruleOutcome{verdict: models.VerdictDeny, reason: in.risk.Reason, pattern: in.risk.MatchedPattern}
	}},
	{name: "command_denylist", eval: func(in ruleInput) *ruleOutcome {
		pattern, ok := matchCommandOrSegments(in.command, in.settings.CommandDenylist)
		if !ok {
			return nil
		}
		return &ruleOutcome{verdict: models.VerdictDeny, reason: "command matches denylist", pattern: pattern}
	}},
	{name: "command_allowlist", eval: func(in ruleInput) *ruleOutcome {
		if in.risk != nil || in.approvalFloor {
			return nil
		}
		pattern, ok := matchAllSegments(in.command, in.settings.CommandAllowlist)
		if !ok {
			return nil
		}
		return &ruleOutcome{verdict: models.VerdictAllow, reason: "command matches allowlist", pattern: pattern}
	}},
}

// matchCommandOrSegments checks the whole command and then each chained
// segment, so a denylisted command cannot hide behind a benign prefix.
func matchCommandOrSegments(command string, patterns []string) (string, bool) {
	if pattern, ok := settings.MatchCommandList(command, patterns); ok {
		return pattern, true
	}
	for _, segment := range risk.SplitCommandChain(command) {
		if pattern, ok := settings.MatchCommandList(segment, patterns); ok {
			return pattern, true
		}
	}
	return "", false
}

// matchAllSegments requires every chained segment to match the allowlist,
// so an allowlisted prefix cannot smuggle an unlisted command past it.
// Returns the pattern that matched the first segment.
func matchAllSegments(command string, patterns []string) (string, bool) {
	segments := risk.SplitCommandChain(command)
	if len(segments) <= 1 {
		return settings.MatchCommandList(command, patterns)
	}

	var first string
	for i, segment := range segments {
		pattern, ok := settings.MatchCommandList(segment, patterns)
		if !ok {
			return "", false
		}
		if i == 0 {
			first = pattern
		}
	}
	return first, true
}

// Decide evaluates one tool-call request. Settings and policy are loaded
// fresh; nothing is cached across decisions. The returned error is reserved
// for caller mistakes (empty tool name); store failures fail closed instead
// of erroring, so a broken backend can never turn into a silent allow.
func (e *Engine) Decide(ctx context.Context, req Request) (*Decision, error) {
	if req.ToolName == "" {
		return nil, ErrNoToolName
	}
	if req.ToolCallID == "" {
		req.ToolCallID = uuid.NewString()
	}

	ctx, span := e.tracer.TraceDecision(ctx, req.ToolName, req.ToolCallID)
	defer span.End()
	start := time.Now()

	st, err := e.store.Load()
	if err != nil {
		st = settings.Conservative()
		e.logger.Warn(ctx, "settings load failed, using conservative defaults",
			"error", err,
			"tool_call_id", req.ToolCallID)
		e.append(audit.Record{
			Type:       audit.EventSettingsLoadFailed,
			ToolName:   req.ToolName,
			ToolCallID: req.ToolCallID,
			SessionKey: req.SessionKey,
			AgentID:    req.AgentID,
			Detail:     "settings store unavailable, conservative defaults applied: " + err.Error(),
		})
	}

	approvalFloor := false
	pol, perr := e.policies.Get(req.AgentID)
	if perr != nil {
		e.logger.Warn(ctx, "policy load failed, requiring approval",
			"error", perr,
			"agent_id", req.AgentID,
			"tool_call_id", req.ToolCallID)
		pol = policy.Default()
		approvalFloor = true
	}

	command := risk.CommandFromArgs(req.ArgumentsJSON)
	classification := risk.Classify(req.ToolName, req.ArgumentsJSON)
	network := risk.AuditNetwork(req.ToolName, req.ArgumentsJSON, st.AllowedDomains...)

	if network.IsNetworkRequest {
		e.append(networkRecord(req, command, network))
	}

	// Informational: injection patterns inside tool arguments never decide
	// a verdict, but they are counted and audited.
	if scan := injection.Scan(req.ArgumentsJSON); scan.IsInjection {
		e.metrics.ScanCounter.WithLabelValues(string(scan.Severity)).Inc()
		e.append(audit.Record{
			Type:       audit.EventInjectionDetected,
			RiskLevel:  scan.Severity,
			ToolName:   req.ToolName,
			ToolCallID: req.ToolCallID,
			Command:    command,
			Detail:     fmt.Sprintf("injection patterns in tool arguments (score %d)", scan.Score),
			SessionKey: req.SessionKey,
			AgentID:    req.AgentID,
		})
	}

	pd := policy.Evaluate(req.ToolName, pol)
	if !pd.Allowed {
		out := &ruleOutcome{verdict: models.VerdictDeny, reason: pd.Reason}
		return e.finish(ctx, req, "tool_policy", out, classification, command, network, start), nil
	}
	if pd.RequiresApproval {
		approvalFloor = true
	}

	in := ruleInput{
		settings:       st,
		risk:           classification,
		command:        command,
		overrideActive: e.override.Active(),
		privEscalation: risk.IsPrivilegeEscalation(req.ToolName, req.ArgumentsJSON),
		fsWrite:        risk.IsFilesystemWrite(req.ToolName, req.ArgumentsJSON),
		approvalFloor:  approvalFloor,
	}
	for _, rule := range pipelineRules {
		if out := rule.eval(in); out != nil {
			return e.finish(ctx, req, rule.name, out, classification, command, network, start), nil
		}
	}

	return e.escalate(ctx, req, st, classification, command, network, start), nil
}

// finish records a terminal automatic verdict.
func (e *Engine) finish(ctx context.Context, req Request, rule string, out *ruleOutcome, classification *risk.Classification, command string, network risk.NetworkAudit, start time.Time) *Decision {
	d := &Decision{
		Verdict:    out.verdict,
		Rule:       rule,
		Reason:     out.reason,
		Risk:       classification,
		Network:    network,
		ToolCallID: req.ToolCallID,
	}

	eventType := audit.EventDecisionDeny
	if out.verdict == models.VerdictAllow {
		eventType = audit.EventDecisionAllow
	}
	e.append(audit.Record{
		Type:           eventType,
		RiskLevel:      riskLevel(classification),
		ToolName:       req.ToolName,
		ToolCallID:     req.ToolCallID,
		Command:        command,
		Detail:         out.reason,
		SessionKey:     req.SessionKey,
		AgentID:        req.AgentID,
		Rule:           rule,
		WasAllowed:     out.verdict == models.VerdictAllow,
		MatchedPattern: out.pattern,
	})

	e.observe(d.Verdict, rule, start)
	e.logger.Info(ctx, "tool call decided",
		"verdict", string(d.Verdict),
		"rule", rule,
		"tool", req.ToolName,
		"tool_call_id", req.ToolCallID)
	return d
}

// escalate suspends the decision for a human verdict.
func (e *Engine) escalate(ctx context.Context, req Request, st settings.Settings, classification *risk.Classification, command string, network risk.NetworkAudit, start time.Time) *Decision {
	const rule = "approval_required"

	d := &Decision{
		Verdict:    models.VerdictRequireApproval,
		Rule:       rule,
		Reason:     "no automatic rule applied, awaiting human verdict",
		Risk:       classification,
		Network:    network,
		ToolCallID: req.ToolCallID,
		done:       make(chan struct{}),
	}
	if st.RequireTypeToCritical && classification != nil && classification.Level == models.SeverityCritical {
		d.RequireTypedConfirmation = true
	}

	e.pending.put(req.ToolCallID, &pendingApproval{
		decision:  d,
		req:       req,
		command:   command,
		riskLevel: riskLevel(classification),
		expiresAt: e.now().Add(e.approvalTTL),
	})
	e.metrics.PendingApprovals.Inc()

	e.append(audit.Record{
		Type:       audit.EventDecisionEscalate,
		RiskLevel:  riskLevel(classification),
		ToolName:   req.ToolName,
		ToolCallID: req.ToolCallID,
		Command:    command,
		Detail:     d.Reason,
		SessionKey: req.SessionKey,
		AgentID:    req.AgentID,
		Rule:       rule,
		WasAllowed: false,
	})

	e.observe(d.Verdict, rule, start)
	e.logger.Info(ctx, "tool call escalated to human approval",
		"tool", req.ToolName,
		"tool_call_id", req.ToolCallID,
		"typed_confirmation", d.RequireTypedConfirmation)
	return d
}

// ResolveApproval delivers the human verdict for a suspended tool call.
// Exactly-once: the first resolution wins and later duplicates (or
// resolutions after the timeout sweeper ran) report false and change
// nothing.
func (e *Engine) ResolveApproval(toolCallID string, approved bool) bool {
	p, ok := e.pending.take(toolCallID)
	if !ok {
		return false
	}
	e.metrics.PendingApprovals.Dec()

	outcome := "denied"
	verdict := models.VerdictDeny
	if approved {
		outcome = "approved"
		verdict = models.VerdictAllow
	}
	e.metrics.ApprovalResolutions.WithLabelValues(outcome).Inc()

	e.append(audit.Record{
		Type:       audit.EventApprovalResolved,
		RiskLevel:  p.riskLevel,
		ToolName:   p.req.ToolName,
		ToolCallID: toolCallID,
		Command:    p.command,
		Detail:     "human verdict: " + outcome,
		SessionKey: p.req.SessionKey,
		AgentID:    p.req.AgentID,
		Rule:       "human_approval",
		WasAllowed: approved,
	})

	p.decision.final = verdict
	close(p.decision.done)
	return true
}

// sweepLoop denies pending approvals whose deadline has passed, so an
// abandoned call always reaches a terminal audit entry.
func (e *Engine) sweepLoop(interval time.Duration) {
	defer e.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

func (e *Engine) sweep() {
	for _, p := range e.pending.takeExpired(e.now()) {
		e.metrics.PendingApprovals.Dec()
		e.metrics.ApprovalResolutions.WithLabelValues("timeout").Inc()

		e.append(audit.Record{
			Type:       audit.EventApprovalTimeout,
			RiskLevel:  p.riskLevel,
			ToolName:   p.req.ToolName,
			ToolCallID: p.req.ToolCallID,
			Command:    p.command,
			Detail:     "no human verdict before deadline, denied",
			SessionKey: p.req.SessionKey,
			AgentID:    p.req.AgentID,
			Rule:       "approval_timeout",
			WasAllowed: false,
		})

		p.decision.final = models.VerdictDeny
		close(p.decision.done)
	}
}

// append stamps and delivers an audit record. Sinks never fail the caller.
func (e *Engine) append(rec audit.Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = e.now().UTC()
	}
	e.sink.Append(rec)
}

func (e *Engine) observe(verdict models.Verdict, rule string, start time.Time) {
	e.metrics.DecisionCounter.WithLabelValues(string(verdict), rule).Inc()
	e.metrics.DecisionDuration.WithLabelValues(string(verdict)).Observe(time.Since(start).Seconds())
}

func networkRecord(req Request, command string, network risk.NetworkAudit) audit.Record {
	detail := "network request"
	if len(network.Targets) > 0 {
		detail = "network request to " + strings.Join(network.Targets, ", ")
	}
	if network.AllTargetsLocal {
		detail += " (all targets local)"
	}
	if network.IsExfiltration {
		detail = "possible exfiltration: " + network.ExfiltrationReason
	}
	return audit.Record{
		Type:       audit.EventNetworkAudit,
		ToolName:   req.ToolName,
		ToolCallID: req.ToolCallID,
		Command:    command,
		Detail:     detail,
		SessionKey: req.SessionKey,
		AgentID:    req.AgentID,
	}
}

func riskLevel(c *risk.Classification) models.Severity {
	if c == nil {
		return ""
	}
	return c.Level
}
