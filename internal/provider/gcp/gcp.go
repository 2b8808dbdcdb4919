// Package gcp serves transcription and synthesis from Google Cloud Speech-to-Text and Text-to-Speech.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/everhighit/coach-api/internal/observability"
	"github.com/everhighit/coach-api/internal/platform/apierr"
	"github.com/everhighit/coach-api/internal/platform/ctxutil"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/provider"
)

type Speech struct {
	log     *logger.Logger
	stt     *speech.Client
	tts     *texttospeech.Client
	timeout time.Duration
}

var (
	_ provider.Transcriber       = (*Speech)(nil)
	_ provider.SpeechSynthesizer = (*Speech)(nil)
)

// ClientOptions turns a credentials value (inline JSON or a file path) into client options.
// Empty falls back to application default credentials.
func ClientOptions(creds string) []option.ClientOption {
	creds = strings.TrimSpace(creds)
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func New(ctx context.Context, log *logger.Logger, creds string, timeout time.Duration) (*Speech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	opts := ClientOptions(creds)

	stt, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	tts, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		_ = stt.Close()
		return nil, fmt.Errorf("texttospeech client: %w", err)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Speech{
		log:     log.With("service", "gcp.Speech"),
		stt:     stt,
		tts:     tts,
		timeout: timeout,
	}, nil
}

func (s *Speech) Close() error {
	if s == nil {
		return nil
	}
	return errors.Join(s.stt.Close(), s.tts.Close())
}

func (s *Speech) Transcribe(ctx context.Context, req provider.TranscriptionRequest) (string, error) {
	if len(req.Audio) == 0 {
		return "", apierr.InvalidRequest(provider.ErrEmptyAudio)
	}
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.stt.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               languageCode(req.Language),
			Encoding:                   inferEncoding(req.MimeType, req.Filename),
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: req.Audio}},
	})
	observability.Current().ObserveProvider("gcp", "transcribe", err, time.Since(start))
	if err != nil {
		return "", s.fail("transcribe", err)
	}

	var b strings.Builder
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		t := strings.TrimSpace(alts[0].GetTranscript())
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(t)
	}
	return b.String(), nil
}

// SynthesizeSpeech treats Voice as a Google voice name ("en-US-Neural2-F"); other values
// such as OpenAI voice ids fall back to the default voice for en-US.
func (s *Speech) SynthesizeSpeech(ctx context.Context, req provider.SpeechRequest) (*provider.Audio, error) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), s.timeout)
	defer cancel()

	voice := &texttospeechpb.VoiceSelectionParams{LanguageCode: "en-US"}
	if lc, ok := voiceLanguage(req.Voice); ok {
		voice.LanguageCode = lc
		voice.Name = strings.TrimSpace(req.Voice)
	}
	enc, format := audioEncoding(req.Format)

	start := time.Now()
	resp, err := s.tts.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input:       &texttospeechpb.SynthesisInput{InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text}},
		Voice:       voice,
		AudioConfig: &texttospeechpb.AudioConfig{AudioEncoding: enc},
	})
	observability.Current().ObserveProvider("gcp", "speech", err, time.Since(start))
	if err != nil {
		return nil, s.fail("speech", err)
	}
	return &provider.Audio{Data: resp.GetAudioContent(), ContentType: provider.ContentTypeForFormat(format)}, nil
}

func (s *Speech) fail(op string, err error) error {
	s.log.Warn("gcp speech request failed", "op", op, "code", status.Code(err).String(), "error", err)
	return apierr.ProviderRequestFailed(httpStatusFromGRPC(status.Code(err)), err)
}

// languageCode widens bare codes ("en") to a BCP-47 tag Speech-to-Text accepts.
func languageCode(lang string) string {
	lang = strings.TrimSpace(lang)
	switch strings.ToLower(lang) {
	case "":
		return "en-US"
	case "en":
		return "en-US"
	case "es":
		return "es-ES"
	case "pt":
		return "pt-BR"
	case "fr":
		return "fr-FR"
	case "de":
		return "de-DE"
	case "it":
		return "it-IT"
	}
	return lang
}

func voiceLanguage(voice string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(voice), "-")
	if len(parts) < 3 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return "", false
	}
	return parts[0] + "-" + parts[1], true
}

func audioEncoding(format string) (texttospeechpb.AudioEncoding, string) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "wav":
		return texttospeechpb.AudioEncoding_LINEAR16, "wav"
	case "opus":
		return texttospeechpb.AudioEncoding_OGG_OPUS, "opus"
	default:
		return texttospeechpb.AudioEncoding_MP3, "mp3"
	}
}

func inferEncoding(mimeType, filename string) speechpb.RecognitionConfig_AudioEncoding {
	m := strings.ToLower(mimeType + " " + filename)
	switch {
	case strings.Contains(m, "webm"):
		return speechpb.RecognitionConfig_WEBM_OPUS
	case strings.Contains(m, "wav"):
		return speechpb.RecognitionConfig_LINEAR16
	case strings.Contains(m, "flac"):
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(m, "mp3"), strings.Contains(m, "mpeg"):
		return speechpb.RecognitionConfig_MP3
	case strings.Contains(m, "ogg"), strings.Contains(m, "opus"):
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func httpStatusFromGRPC(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return 400
	case codes.Unauthenticated:
		return 401
	case codes.PermissionDenied:
		return 403
	case codes.NotFound:
		return 404
	case codes.ResourceExhausted:
		return 429
	case codes.Unavailable:
		return 503
	case codes.DeadlineExceeded:
		return 504
	default:
		return 500
	}
}
