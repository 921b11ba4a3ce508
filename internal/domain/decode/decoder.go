package decode

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oklog/ulid/v2"

	"github.com/oisp/sensor/internal/domain/capture"
	"github.com/oisp/sensor/internal/domain/event"
	"github.com/oisp/sensor/internal/domain/spec"
)

// RegistrySource gives the Decoder read access to the live spec Registry
// snapshot without depending on how it gets refreshed.
type RegistrySource func() *spec.Snapshot

// Decoder turns reassembled HTTP requests/responses into canonical AI
// events, driven entirely by the spec bundle's provider and extraction
// rules — it never hardcodes a provider's domain or wire shape.
type Decoder struct {
	registry    RegistrySource
	reassembler *Reassembler
	pending     *PendingTable
	host        event.Host
	source      event.Source
	log         *zap.Logger
}

func NewDecoder(registry RegistrySource, host event.Host, source event.Source, log *zap.Logger) *Decoder {
	d := &Decoder{
		registry: registry,
		pending:  NewPendingTable(),
		host:     host,
		source:   source,
		log:      log,
	}
	d.reassembler = NewReassembler()
	d.reassembler.StyleResolver = d.resolveStreamStyle
	return d
}

func (d *Decoder) connectionKey(rec capture.Record) ConnectionKey {
	k := ConnectionKey{PID: rec.PID, FD: -1}
	if rec.TID != nil {
		k.TID = *rec.TID
	}
	if rec.Meta.FD != nil {
		k.FD = *rec.Meta.FD
	}
	return k
}

// resolveStreamStyle is handed to the Reassembler so it can pick the right
// Stream Reassembler without knowing about providers itself.
func (d *Decoder) resolveStreamStyle(key ConnectionKey) (string, bool) {
	pr, ok := d.pending.Peek(key)
	if !ok {
		return "", false
	}
	snap := d.registry()
	if snap == nil {
		return "", pr.StreamExpected
	}
	p, ok := snap.Registry.Provider(pr.ProviderID)
	if !ok {
		return "", pr.StreamExpected
	}
	return string(p.Style), pr.StreamExpected
}

// HandleWrite feeds one ssl_write capture record through reassembly and, if
// it completes a request recognized as an AI call, returns the ai.request
// event for it.
func (d *Decoder) HandleWrite(rec capture.Record) (*event.Event, bool) {
	key := d.connectionKey(rec)
	completed, ok := d.reassembler.FeedWrite(key, rec.Payload)
	if !ok {
		return nil, false
	}
	return d.decodeRequest(key, rec, *completed)
}

// HandleRead feeds one ssl_read capture record through reassembly and, if
// it completes a response paired with a pending request, returns the
// ai.response event for it.
func (d *Decoder) HandleRead(rec capture.Record) (*event.Event, bool) {
	key := d.connectionKey(rec)
	completed, ok := d.reassembler.FeedRead(key, rec.Payload)
	if !ok {
		return nil, false
	}
	return d.decodeResponse(*completed)
}

// HandleClose signals end-of-stream for a connection (the probe reports the
// underlying fd closed), completing any response with no declared framing.
func (d *Decoder) HandleClose(rec capture.Record) (*event.Event, bool) {
	key := d.connectionKey(rec)
	completed, ok := d.reassembler.Close(key)
	if !ok {
		return nil, false
	}
	return d.decodeResponse(*completed)
}

// Housekeeping evicts idle partials and stale pending requests; callers run
// it on a periodic tick (see spec §5's single-dispatcher concurrency model).
// A call within housekeepingInterval of the previous sweep does nothing.
func (d *Decoder) Housekeeping(now time.Time) {
	if now.Sub(d.reassembler.lastHousekeeping) < housekeepingInterval {
		return
	}
	d.reassembler.Housekeeping(now)
	d.pending.EvictStale(now)
}

func originHost(rec capture.Record, headers headerSet) string {
	if rec.Meta.RemoteHost != "" {
		return rec.Meta.RemoteHost
	}
	h, _ := headers.get("Host")
	return h
}

func (d *Decoder) decodeRequest(key ConnectionKey, rec capture.Record, completed CompletedRequest) (*event.Event, bool) {
	host := originHost(rec, completed.Head.Headers)
	if host == "" {
		return nil, false
	}
	snap := d.registry()
	if snap == nil || !snap.Registry.IsAIDomain(host) {
		return nil, false
	}
	if !looksLikeAIPayload(completed.Body) {
		return nil, false
	}

	providerID := snap.Registry.DetectFromDomain(host)
	rules, ok := snap.Registry.ExtractionRules(providerID)
	if !ok {
		d.log.Debug("no extraction rules for provider", zap.String("provider", providerID))
		return nil, false
	}
	ep, ok := matchEndpoint(rules, completed.Head.Path)
	if !ok {
		d.log.Debug("no endpoint match", zap.String("provider", providerID), zap.String("path", completed.Head.Path))
		return nil, false
	}

	fields := extractFields(completed.Body, ep.RequestExtraction)
	streaming := isStreamingRequest(completed.Body, ep.Streaming)

	data := event.AIRequestData{
		RequestID:   ulid.Make().String(),
		Provider:    event.ProviderInfo{Name: snap.Registry.DisplayName(providerID), Endpoint: completed.Head.Path},
		RequestType: event.RequestType(ep.RequestType),
		Streaming:   streaming,
		Auth:        classifyAuth(snap.Registry, providerID, completed.Head.Headers),
	}
	if v, ok := fields["model"]; ok {
		data.Model.ID = v.String()
		if m, ok := snap.Registry.Model(providerID, v.String()); ok {
			if m.ContextWindow != nil {
				cw := int(*m.ContextWindow)
				data.Model.ContextWindow = &cw
			}
			if m.MaxOutputTokens != nil {
				mo := int(*m.MaxOutputTokens)
				data.Model.MaxOutputTokens = &mo
			}
		}
	}
	if v, ok := fields["messages"]; ok {
		data.Messages = buildMessages(v)
	}
	if v, ok := fields["tools"]; ok {
		data.Tools = buildTools(v)
	}
	if v, ok := fields["max_tokens"]; ok {
		mt := int(v.Int())
		data.Parameters.MaxTokens = &mt
	}
	if v, ok := fields["temperature"]; ok {
		t := v.Float()
		data.Parameters.Temperature = &t
	}

	envelope := event.NewEnvelope(event.TypeAIRequest, d.source)
	envelope.Host = d.host
	envelope.Process = &event.Process{
		PID:  rec.PID,
		Comm: rec.Meta.Comm,
		Exe:  rec.Meta.Exe,
		PPID: rec.Meta.PPID,
	}
	if rec.TID != nil {
		envelope.Process.TID = rec.TID
	}
	if rec.Meta.UID != 0 {
		envelope.Actor = &event.Actor{UID: rec.Meta.UID}
	}

	d.pending.Insert(key, &PendingRequest{
		Request:        data,
		Envelope:       envelope,
		FirstSeen:      time.Now(),
		ProviderID:     providerID,
		Endpoint:       ep,
		StreamExpected: streaming,
		OriginHost:     host,
	})

	ev := &event.Event{Envelope: envelope, AIRequest: &data}
	return ev, true
}

func (d *Decoder) decodeResponse(completed CompletedResponse) (*event.Event, bool) {
	pr, ok := d.pending.Take(completed.Key)
	if !ok {
		d.log.Debug("response with no matching pending request", zap.String("key", completed.Key.String()))
		return nil, false
	}

	snap := d.registry()
	var style spec.ProviderStyle = spec.StyleGeneric
	if snap != nil {
		if p, ok := snap.Registry.Provider(pr.ProviderID); ok {
			style = p.Style
		}
	}

	var (
		choices           []event.Choice
		toolCalls         []event.ToolCall
		usage             event.Usage
		providerRequestID string
		errInfo           *event.ErrorInfo
		thinking          *event.ThinkingBlock
		finish            event.FinishReason
	)

	if completed.Streaming {
		finish, choices, toolCalls, usage = d.fromStream(completed.Stream)
	} else {
		switch style {
		case spec.StyleAnthropic:
			parsed := parseAnthropicResponseBody(completed.Body)
			choices, toolCalls, usage = parsed.Choices, parsed.ToolCalls, parsed.Usage
			providerRequestID, errInfo, thinking = parsed.ProviderRequestID, parsed.Error, parsed.Thinking
			if len(choices) > 0 {
				finish = choices[0].FinishReason
			}
		default:
			parsed := parseOpenAIResponseBody(completed.Body)
			choices, usage = parsed.Choices, parsed.Usage
			providerRequestID, errInfo = parsed.ProviderRequestID, parsed.Error
			if len(choices) > 0 {
				finish = choices[0].FinishReason
			}
		}
	}

	if usage.PromptTokens > 0 || usage.CompletionTokens > 0 {
		usage.CostUSD = func() *float64 {
			if snap == nil {
				return nil
			}
			return snap.Registry.EstimateCostUSD(pr.ProviderID, pr.Request.Model.ID, usage.PromptTokens, usage.CompletionTokens)
		}()
	}

	data := event.AIResponseData{
		RequestID:    pr.Request.RequestID,
		Provider:     event.ProviderInfo{Name: displayName(snap, pr.ProviderID), RequestID: providerRequestID},
		Model:        pr.Request.Model,
		StatusCode:   completed.Head.StatusCode,
		Success:      completed.Head.StatusCode >= 200 && completed.Head.StatusCode < 300 && errInfo == nil,
		Error:        errInfo,
		Choices:      choices,
		ToolCalls:    toolCalls,
		Usage:        usage,
		LatencyMS:    time.Since(pr.FirstSeen).Milliseconds(),
		FinishReason: finish,
		Thinking:     thinking,
	}

	envelope := event.NewEnvelope(event.TypeAIResponse, d.source)
	envelope.Host = pr.Envelope.Host
	envelope.Process = pr.Envelope.Process
	envelope.Actor = pr.Envelope.Actor
	envelope.RelatedEvents = []event.RelatedEvent{{EventID: pr.Envelope.EventID, Relationship: event.RelationCausedBy}}

	return &event.Event{Envelope: envelope, AIResponse: &data}, true
}

func (d *Decoder) fromStream(s StreamReassembler) (event.FinishReason, []event.Choice, []event.ToolCall, event.Usage) {
	switch r := s.(type) {
	case *OpenAIStreamReassembler:
		choice := event.Choice{
			Message:      event.Message{Role: event.RoleAssistant, Content: event.TextContent(r.Content())},
			FinishReason: r.FinishReason(),
		}
		return r.FinishReason(), []event.Choice{choice}, r.ToolCalls(), r.Usage()
	case *AnthropicStreamReassembler:
		choice := event.Choice{
			Message:      event.Message{Role: event.RoleAssistant, Content: event.TextContent(r.Content())},
			FinishReason: r.FinishReason(),
		}
		return r.FinishReason(), []event.Choice{choice}, nil, r.Usage()
	default:
		return event.FinishOther, nil, nil, event.Usage{}
	}
}

func displayName(snap *spec.Snapshot, providerID string) string {
	if snap == nil {
		return providerID
	}
	return snap.Registry.DisplayName(providerID)
}

// classifyAuth reads the Authorization/x-api-key header, classifies it by
// the provider's own declared key prefixes, and stores only a prefix marker
// plus an opaque hash — never the raw credential.
func classifyAuth(reg *spec.Registry, providerID string, headers headerSet) event.AuthInfo {
	raw, ok := headers.get("Authorization")
	scheme := event.AuthAPIKey
	if !ok {
		raw, ok = headers.get("x-api-key")
	}
	if !ok {
		return event.AuthInfo{Type: event.AuthNone}
	}
	key := strings.TrimPrefix(raw, "Bearer ")
	prefix := reg.PrefixForProvider(providerID, key)
	sum := sha256.Sum256([]byte(key))
	return event.AuthInfo{
		Type:      scheme,
		KeyPrefix: prefix,
		KeyHash:   hex.EncodeToString(sum[:]),
	}
}
