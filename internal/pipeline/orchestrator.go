package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/antoniostano/jarvis/internal/audio"
	"github.com/antoniostano/jarvis/internal/command"
	"github.com/antoniostano/jarvis/internal/conversation"
	"github.com/antoniostano/jarvis/internal/journal"
	"github.com/antoniostano/jarvis/internal/observability"
	"github.com/antoniostano/jarvis/internal/protocol"
	"github.com/antoniostano/jarvis/internal/recognition"
	"github.com/antoniostano/jarvis/internal/session"
	"github.com/antoniostano/jarvis/internal/synthesis"
)

const journalTimeout = 2 * time.Second

var tracer = observability.Tracer("pipeline")

// Recognizer turns a WAV utterance into text.
type Recognizer interface {
	Transcribe(ctx context.Context, wav []byte, language string) (recognition.Transcript, error)
}

// Synthesizer renders reply text as audio. A nil result means no audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) []byte
}

// Inbound events consumed by RunConnection, besides the protocol messages
// TextMessage, ControlMessage and AudioMessage.
type (
	// AudioFrame is a raw PCM16LE mono frame received as a binary message.
	AudioFrame struct {
		PCM []byte
	}
	// InvalidMessage reports an inbound message that could not be decoded.
	InvalidMessage struct {
		Err error
	}
)

type Config struct {
	Language          string
	SampleRate        int
	MinUtteranceBytes int
	SpeechThreshold   float64
	NormalizeAudio    bool
}

// Deps are the collaborators of an Orchestrator. Journal and Metrics may be
// nil.
type Deps struct {
	Recognizer      Recognizer
	Router          *command.Router
	Synthesizer     Synthesizer
	NewConversation func() *conversation.Store
	Journal         journal.Store
	Metrics         *observability.Metrics
	Logger          *slog.Logger
	Clock           func() time.Time
}

// Orchestrator runs the per-session state machine: meter, recognize, route,
// converse, synthesize and respond.
type Orchestrator struct {
	recognizer      Recognizer
	router          *command.Router
	synth           Synthesizer
	newConversation func() *conversation.Store
	journal         journal.Store
	metrics         *observability.Metrics
	logger          *slog.Logger
	now             func() time.Time
	cfg             Config
}

func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	if cfg.Language == "" {
		cfg.Language = "ru"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.MinUtteranceBytes < 0 {
		cfg.MinUtteranceBytes = 0
	}
	if cfg.SpeechThreshold <= 0 {
		cfg.SpeechThreshold = audio.DefaultSpeechThreshold
	}
	if deps.Router == nil {
		deps.Router = command.NewRouter()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Orchestrator{
		recognizer:      deps.Recognizer,
		router:          deps.Router,
		synth:           deps.Synthesizer,
		newConversation: deps.NewConversation,
		journal:         deps.Journal,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
		now:             deps.Clock,
		cfg:             cfg,
	}
}

// RunConnection is the single worker of a session. Inbound events are handled
// one at a time in arrival order until ctx is cancelled, inbound is closed or
// the session is closed.
func (o *Orchestrator) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Done():
			return nil
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			o.handle(ctx, s, msg)
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
}

// handle dispatches one inbound event under a fresh request id. Faults
// become an error event and the session goes back to idle.
func (o *Orchestrator) handle(ctx context.Context, s *session.Session, msg any) {
	requestID := uuid.NewString()
	logger := o.logger.With("session_id", s.ID, "request_id", requestID)

	ctx, span := tracer.Start(ctx, "handle inbound")
	span.SetAttributes(attribute.String("session.id", s.ID), attribute.String("request.id", requestID))

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			logger.Error("session handler panicked", "panic", r, "stack", string(debug.Stack()))
			o.sessionEvent("handler_panic")
		}
		if err != nil && ctx.Err() == nil {
			if !errors.Is(err, session.ErrClosed) {
				logger.Error("inbound event failed", "error", err)
				s.SetState(session.StateError)
				o.emit(s, requestID, protocol.EventError, protocol.ErrorData{Error: protocol.MessageInternalError})
			}
		}
		s.SetState(session.StateIdle)
		observability.EndSpan(span, err)
	}()

	switch m := msg.(type) {
	case AudioFrame:
		err = o.ProcessAudio(ctx, s, requestID, audio.Buffer{PCM: m.PCM})
	case protocol.AudioMessage:
		buf, decodeErr := decodeAudioMessage(m)
		if decodeErr != nil {
			logger.Warn("audio message rejected", "error", decodeErr)
			err = o.emit(s, requestID, protocol.EventError, protocol.ErrorData{Error: protocol.MessageUnsupportedFormat})
			return
		}
		err = o.ProcessAudio(ctx, s, requestID, buf)
	case protocol.TextMessage:
		err = o.ProcessText(ctx, s, requestID, m.Text)
	case protocol.ControlMessage:
		err = o.HandleControl(ctx, s, requestID, m.Action)
	case InvalidMessage:
		logger.Warn("inbound message rejected", "error", m.Err)
		err = o.emit(s, requestID, protocol.EventError, protocol.ErrorData{Error: protocol.MessageUnsupportedFormat})
	default:
		err = fmt.Errorf("unexpected inbound event %T", msg)
	}
}

// decodeAudioMessage unwraps a structured audio message. The WAV header rate
// wins over the declared sample_rate. Payloads declared as wav must parse.
func decodeAudioMessage(m protocol.AudioMessage) (audio.Buffer, error) {
	raw, err := audio.DecodeBase64Audio(m.Audio)
	if err != nil {
		return audio.Buffer{}, err
	}
	buf := audio.Buffer{PCM: raw, SampleRate: m.SampleRate}
	pcm, rate, err := audio.ExtractPCM(raw)
	switch {
	case err == nil:
		buf.PCM = pcm
		if rate > 0 {
			buf.SampleRate = rate
		}
	case strings.EqualFold(strings.TrimSpace(m.Format), "wav"):
		return audio.Buffer{}, err
	}
	if buf.SampleRate < 0 {
		return audio.Buffer{}, fmt.Errorf("invalid sample rate %d", buf.SampleRate)
	}
	return buf, nil
}

// ProcessAudio meters a PCM buffer and, when it is long enough to be an
// utterance, recognizes it and answers it. A zero sample rate means the
// configured rate.
func (o *Orchestrator) ProcessAudio(ctx context.Context, s *session.Session, requestID string, buf audio.Buffer) error {
	started := o.now()
	pcm := buf.PCM
	sampleRate := buf.SampleRate
	if sampleRate <= 0 {
		sampleRate = o.cfg.SampleRate
	}
	s.SetState(session.StateMetering)
	volume := audio.ComputeVolume(pcm)
	if err := o.emit(s, requestID, protocol.EventVolume, protocol.VolumeData{Volume: volume}); err != nil {
		return err
	}
	o.metrics.ObserveStage(observability.StageMetering, o.now().Sub(started))

	if len(pcm) < o.cfg.MinUtteranceBytes {
		o.metrics.ObserveIndicator("utterance_too_short")
		return nil
	}
	if !audio.DetectSpeech(pcm, o.cfg.SpeechThreshold) {
		o.metrics.ObserveIndicator("low_volume_utterance")
	}

	s.SetState(session.StateTranscribing)
	if err := o.emit(s, requestID, protocol.EventStatus, protocol.StatusData{Status: protocol.StatusTranscribing, Message: protocol.MessageTranscribing}); err != nil {
		return err
	}

	if o.cfg.NormalizeAudio {
		pcm = audio.Normalize(pcm)
	}
	wav := audio.WrapAsPlayable(pcm, sampleRate)

	recognitionStarted := o.now()
	transcript, err := o.transcribe(ctx, wav)
	o.metrics.ObserveStage(observability.StageRecognition, o.now().Sub(recognitionStarted))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		o.logger.Info("speech not recognized", "session_id", s.ID, "request_id", requestID, "error", err)
		return o.emit(s, requestID, protocol.EventError, protocol.ErrorData{Error: protocol.MessageNotRecognized})
	}

	if err := o.emit(s, requestID, protocol.EventTranscription, protocol.TranscriptionData{Text: transcript.Text, Engine: transcript.Engine}); err != nil {
		return err
	}
	if err := o.emit(s, requestID, protocol.EventStatus, protocol.StatusData{Status: protocol.StatusProcessing, Message: protocol.MessageProcessing}); err != nil {
		return err
	}
	return o.respond(ctx, s, requestID, transcript.Text, started)
}

// ProcessText answers a typed utterance.
func (o *Orchestrator) ProcessText(ctx context.Context, s *session.Session, requestID, text string) error {
	started := o.now()
	if err := o.emit(s, requestID, protocol.EventStatus, protocol.StatusData{Status: protocol.StatusProcessing, Message: protocol.MessageProcessing}); err != nil {
		return err
	}
	return o.respond(ctx, s, requestID, text, started)
}

// HandleControl runs a side-channel action.
func (o *Orchestrator) HandleControl(_ context.Context, s *session.Session, requestID, action string) error {
	switch action {
	case protocol.ActionClearHistory:
		if s.Conversation != nil {
			s.Conversation.Clear()
		}
		o.sessionEvent("history_cleared")
		return o.emit(s, requestID, protocol.EventStatus, protocol.StatusData{Status: protocol.StatusSuccess, Message: protocol.MessageHistoryCleared})
	case protocol.ActionGetReminders:
		list := s.Reminders.List()
		items := make([]protocol.ReminderItem, 0, len(list))
		for _, r := range list {
			items = append(items, protocol.ReminderItem{Text: r.Text, CreatedAt: protocol.Timestamp(r.CreatedAt)})
		}
		return o.emit(s, requestID, protocol.EventReminders, protocol.RemindersData{Reminders: items})
	default:
		o.logger.Warn("unknown control action", "session_id", s.ID, "action", action)
		return o.emit(s, requestID, protocol.EventError, protocol.ErrorData{Error: protocol.MessageUnknownAction + ": " + action})
	}
}

// Answer is the outcome of one utterance.
type Answer struct {
	Text     string
	Kind     command.Kind
	Handler  string
	Audio    []byte
	Reminder *command.Reminder
}

// Execute answers text outside any live session, with a throwaway
// conversation and reminder scope.
func (o *Orchestrator) Execute(ctx context.Context, text string) Answer {
	var store *conversation.Store
	if o.newConversation != nil {
		store = o.newConversation()
	}
	started := o.now()
	ans := o.answer(ctx, nil, text, store, &command.Reminders{})
	o.metrics.ObserveStage(observability.StageTurnTotal, o.now().Sub(started))
	return ans
}

func (o *Orchestrator) respond(ctx context.Context, s *session.Session, requestID, text string, started time.Time) error {
	ans := o.answer(ctx, s, text, s.Conversation, s.Reminders)
	if err := ctx.Err(); err != nil {
		return err
	}

	s.SetState(session.StateResponding)
	var audioURI *string
	if uri := synthesis.DataURI(ans.Audio, synthesis.MIMEMPEG); uri != "" {
		audioURI = &uri
	}
	err := o.emit(s, requestID, protocol.EventResponse, protocol.ResponseData{
		Text:        ans.Text,
		Audio:       audioURI,
		CommandType: string(ans.Kind),
		Timestamp:   protocol.Timestamp(o.now()),
	})
	o.metrics.ObserveStage(observability.StageTurnTotal, o.now().Sub(started))

	o.record(s.ID, requestID, journal.Entry{Kind: journal.KindUtterance, Content: text, CommandType: string(ans.Kind), Handler: ans.Handler})
	o.record(s.ID, requestID, journal.Entry{Kind: journal.KindResponse, Content: ans.Text, CommandType: string(ans.Kind), Handler: ans.Handler})
	if ans.Reminder != nil {
		o.record(s.ID, requestID, journal.Entry{Kind: journal.KindReminder, Content: ans.Reminder.Text, Handler: ans.Handler})
	}
	return err
}

// answer routes text and produces the reply with its audio. s may be nil.
func (o *Orchestrator) answer(ctx context.Context, s *session.Session, text string, store *conversation.Store, reminders *command.Reminders) Answer {
	setState := func(state session.State) {
		if s != nil {
			s.SetState(state)
		}
	}

	setState(session.StateRouting)
	routingStarted := o.now()
	res := o.router.Route(ctx, text, reminders)
	o.metrics.ObserveStage(observability.StageRouting, o.now().Sub(routingStarted))
	if o.metrics != nil {
		o.metrics.CommandsRouted.WithLabelValues(res.Handler).Inc()
	}

	ans := Answer{Text: res.Text, Kind: res.Kind, Handler: res.Handler, Reminder: res.Reminder}
	if res.Kind == command.KindConversational {
		setState(session.StateConversing)
		conversationStarted := o.now()
		ans.Text = o.converse(ctx, store, text)
		o.metrics.ObserveStage(observability.StageConversation, o.now().Sub(conversationStarted))
	}
	if ctx.Err() != nil {
		return ans
	}

	setState(session.StateSynthesizing)
	if o.synth != nil {
		synthesisStarted := o.now()
		ans.Audio = o.synth.Synthesize(ctx, ans.Text)
		o.metrics.ObserveStage(observability.StageSynthesis, o.now().Sub(synthesisStarted))
		if ans.Audio == nil {
			o.metrics.ObserveIndicator("response_without_audio")
		}
	}
	return ans
}

func (o *Orchestrator) converse(ctx context.Context, store *conversation.Store, text string) string {
	if store == nil {
		return protocol.MessageCannotProcess
	}
	reply, err := store.Ask(ctx, text)
	if err != nil {
		o.logger.Warn("conversational reply unavailable", "error", err)
		o.metrics.ObserveProviderError("conversation", conversationErrorCode(err))
		return protocol.MessageCannotProcess
	}
	return reply
}

func (o *Orchestrator) transcribe(ctx context.Context, wav []byte) (recognition.Transcript, error) {
	if o.recognizer == nil {
		return recognition.Transcript{}, recognition.ErrNoTranscript
	}
	return o.recognizer.Transcribe(ctx, wav, o.cfg.Language)
}

func (o *Orchestrator) emit(s *session.Session, requestID string, typ protocol.EventType, data any) error {
	err := s.Emit(typ, requestID, data)
	switch {
	case err == nil:
		o.metrics.ObserveOutbound(string(typ), "delivered")
	case errors.Is(err, session.ErrClosed):
		o.metrics.ObserveOutbound(string(typ), "closed")
	default:
		o.metrics.ObserveOutbound(string(typ), "dropped")
	}
	return err
}

// record writes a journal entry off the session worker.
func (o *Orchestrator) record(sessionID, requestID string, entry journal.Entry) {
	if o.journal == nil {
		return
	}
	entry.SessionID = sessionID
	entry.RequestID = requestID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		defer cancel()
		if err := o.journal.Record(ctx, entry); err != nil {
			o.logger.Warn("journal write failed", "session_id", sessionID, "error", err)
			o.sessionEvent("journal_write_failed")
		}
	}()
}

func (o *Orchestrator) sessionEvent(name string) {
	if o.metrics == nil {
		return
	}
	o.metrics.SessionEvents.WithLabelValues(name).Inc()
}

func conversationErrorCode(err error) string {
	switch {
	case errors.Is(err, conversation.ErrEmptyReply):
		return "empty_reply"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
