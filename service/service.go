// Package service wires decoding, feature extraction, preprocessing,
// classification and speaker identification into request-level operations.
// One Service is built at startup and shared by every handler.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voice-analyze/observe"
	"voice-analyze/speakers"
	"voice-analyze/utils"
	"voice-analyze/voice"
)

// ErrInvalidRequest marks caller mistakes such as a missing speaker id.
var ErrInvalidRequest = errors.New("invalid request")

// Dependencies are the startup-loaded collaborators. Only Store and Decoder
// are required; missing params or classifier degrade the matching feature.
type Dependencies struct {
	Store             *speakers.Store
	Decoder           voice.Decoder
	SentimentParams   *voice.PreprocessingParams
	RecognitionParams *voice.PreprocessingParams
	Classifier        *voice.Classifier
}

// Options tune request handling.
type Options struct {
	// Workers bounds concurrent feature extractions. Zero uses GOMAXPROCS.
	Workers int
	// RequestTimeout covers decode, extraction and prediction. Zero disables it.
	RequestTimeout time.Duration
	// Threshold is the minimum similarity for a speaker match. Nil always
	// returns the best-scoring speaker.
	Threshold *float64
	Metrics   *observe.Metrics
	Logger    *slog.Logger
}

// Service is the request-level API.
type Service struct {
	store             *speakers.Store
	decoder           voice.Decoder
	sentimentParams   *voice.PreprocessingParams
	recognitionParams *voice.PreprocessingParams
	classifier        *voice.Classifier

	pool      *Pool
	timeout   time.Duration
	threshold *float64
	metrics   *observe.Metrics
	logger    *slog.Logger
}

// New builds a Service.
func New(deps Dependencies, opts Options) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("service requires a speaker store")
	}
	if deps.Decoder == nil {
		return nil, fmt.Errorf("service requires an audio decoder")
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.NewNoopMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = utils.GetLogger()
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = voice.NewClassifier(nil, nil)
	}

	return &Service{
		store:             deps.Store,
		decoder:           deps.Decoder,
		sentimentParams:   deps.SentimentParams,
		recognitionParams: deps.RecognitionParams,
		classifier:        classifier,
		pool:              NewPool(opts.Workers, opts.Metrics),
		timeout:           opts.RequestTimeout,
		threshold:         opts.Threshold,
		metrics:           opts.Metrics,
		logger:            opts.Logger,
	}, nil
}

// Readiness reports which pipelines loaded at startup.
type Readiness struct {
	Sentiment   bool `json:"sentiment"`
	Recognition bool `json:"recognition"`
}

// Ready reports pipeline availability.
func (s *Service) Ready() Readiness {
	return Readiness{
		Sentiment:   s.sentimentParams != nil && s.classifier.Ready(),
		Recognition: s.recognitionParams != nil,
	}
}

// Store exposes the speaker store, e.g. for metrics callbacks.
func (s *Service) Store() *speakers.Store { return s.store }

func (s *Service) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

type extraction struct {
	audio    *voice.AudioSample
	features voice.FeatureVector
}

// extract decodes and extracts on a pool slot.
func (s *Service) extract(ctx context.Context, data []byte) (extraction, error) {
	start := time.Now()
	out, err := Submit(ctx, s.pool, func() (extraction, error) {
		audio, err := s.decoder.Decode(data)
		if err != nil {
			return extraction{}, err
		}
		features, err := voice.ExtractFeatureVector(audio.Samples, audio.SampleRate)
		if err != nil {
			return extraction{}, err
		}
		return extraction{audio: audio, features: features}, nil
	})
	s.metrics.ExtractionDuration.Record(ctx, time.Since(start).Seconds())
	return out, err
}

// Extract returns the decoded clip and its raw feature vector.
func (s *Service) Extract(ctx context.Context, data []byte) (*voice.AudioSample, voice.FeatureVector, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	out, err := s.extract(ctx, data)
	if err != nil {
		return nil, voice.FeatureVector{}, err
	}
	return out.audio, out.features, nil
}

// Enroll appends one clip of speaker to the store. The call returns nil only
// after the store has durably saved the new vector.
func (s *Service) Enroll(ctx context.Context, speaker string, data []byte) (err error) {
	defer func() { s.metrics.RecordEnrollment(ctx, statusOf(err)) }()

	speaker = strings.TrimSpace(speaker)
	if speaker == "" {
		return fmt.Errorf("%w: speaker is required", ErrInvalidRequest)
	}
	if s.recognitionParams == nil {
		return fmt.Errorf("%w: recognition preprocessing params", voice.ErrModelNotLoaded)
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	out, err := s.extract(ctx, data)
	if err != nil {
		return err
	}
	vector, err := voice.Preprocess(out.features, s.recognitionParams)
	if err != nil {
		return err
	}

	// saving is not abandoned once started
	if err := s.store.Add(context.WithoutCancel(ctx), speaker, vector); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "speaker enrolled",
		"speaker", speaker,
		"duration", out.audio.Duration,
		"sample_rate", out.audio.SampleRate,
	)
	return nil
}

// AnalyzeRequest is one clip to analyze plus fields echoed back unchanged.
type AnalyzeRequest struct {
	Audio     []byte
	SegmentID any
	Text      string
	Language  string
	Start     *float64
	End       *float64
}

// AnalyzeResult is the combined sentiment and speaker outcome.
type AnalyzeResult struct {
	SegmentID       any      `json:"segment_id,omitempty"`
	Text            string   `json:"text,omitempty"`
	Language        string   `json:"language,omitempty"`
	Start           *float64 `json:"start,omitempty"`
	End             *float64 `json:"end,omitempty"`
	VoiceSentiment  string   `json:"voice_sentiment"`
	Speaker         string   `json:"speaker"`
	SimilarityScore float64  `json:"similarity_score"`
	Duration        float64  `json:"duration"`
	SNRDb           float64  `json:"snr_db"`
	Status          string   `json:"status"`
}

// Analyze extracts features once and runs both pipelines. Only decode and
// extraction failures fail the request; sentiment and recognition problems
// are reported through sentinel values in the result.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (res *AnalyzeResult, err error) {
	defer func() { s.metrics.RecordRequest(ctx, "analyze", statusOf(err)) }()

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	out, err := s.extract(ctx, req.Audio)
	if err != nil {
		return nil, err
	}

	res = &AnalyzeResult{
		SegmentID: req.SegmentID,
		Text:      req.Text,
		Language:  req.Language,
		Start:     req.Start,
		End:       req.End,
		Duration:  out.audio.Duration,
		SNRDb:     out.audio.SNRDb,
		Status:    "success",
	}

	res.VoiceSentiment = s.predictSentiment(ctx, out.features)

	match := s.identify(ctx, out.features)
	res.Speaker = match.Name()
	res.SimilarityScore = match.Score

	s.logger.InfoContext(ctx, "segment analyzed",
		"segment_id", req.SegmentID,
		"voice_sentiment", res.VoiceSentiment,
		"speaker", res.Speaker,
		"similarity_score", res.SimilarityScore,
	)
	return res, nil
}

func (s *Service) predictSentiment(ctx context.Context, features voice.FeatureVector) string {
	if s.sentimentParams == nil || !s.classifier.Ready() {
		return voice.ModelNotLoadedLabel
	}
	vector, err := voice.Preprocess(features, s.sentimentParams)
	if err != nil {
		s.logger.WarnContext(ctx, "sentiment preprocessing failed", slog.Any("error", err))
		return voice.ErrorLabel
	}

	start := time.Now()
	label, err := s.classifier.Predict(ctx, vector.WithChannelAxis())
	s.metrics.PredictionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.logger.WarnContext(ctx, "sentiment prediction failed", slog.Any("error", err))
	}
	return label
}

func (s *Service) identify(ctx context.Context, features voice.FeatureVector) speakers.Match {
	if s.recognitionParams == nil {
		return speakers.Match{}
	}
	vector, err := voice.Preprocess(features, s.recognitionParams)
	if err != nil {
		s.logger.WarnContext(ctx, "recognition preprocessing failed", slog.Any("error", err))
		return speakers.Match{}
	}
	match := s.store.Identify(vector, s.threshold)
	if match.Found {
		s.metrics.IdentifyScore.Record(ctx, match.Score)
	}
	return match
}

// Identify matches a clip against the enrolled speakers. It fails with
// voice.ErrNotFound when no speaker could be matched.
func (s *Service) Identify(ctx context.Context, data []byte) (match speakers.Match, err error) {
	defer func() { s.metrics.RecordRequest(ctx, "identify", statusOf(err)) }()

	if s.recognitionParams == nil {
		return speakers.Match{}, fmt.Errorf("%w: recognition preprocessing params", voice.ErrModelNotLoaded)
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	out, err := s.extract(ctx, data)
	if err != nil {
		return speakers.Match{}, err
	}
	match = s.identify(ctx, out.features)
	if !match.Found {
		return match, fmt.Errorf("%w: no enrolled speaker matched", voice.ErrNotFound)
	}
	return match, nil
}

// Speakers lists enrolled speakers in enrollment order.
func (s *Service) Speakers() []speakers.SpeakerStat {
	return s.store.Stats()
}

// Speaker returns one speaker's enrollment summary.
func (s *Service) Speaker(id string) (speakers.SpeakerStat, error) {
	for _, stat := range s.store.Stats() {
		if stat.Speaker == id {
			return stat, nil
		}
	}
	return speakers.SpeakerStat{}, fmt.Errorf("%w: speaker %q", voice.ErrNotFound, id)
}

// Close releases the store.
func (s *Service) Close() error {
	return s.store.Close()
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, voice.ErrAudioDecode):
		return "decode_error"
	case errors.Is(err, voice.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, voice.ErrModelNotLoaded):
		return "model_not_loaded"
	case errors.Is(err, voice.ErrPersistence):
		return "persistence_error"
	case errors.Is(err, voice.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
