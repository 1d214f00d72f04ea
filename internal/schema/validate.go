// Package schema turns an untrusted JSON quiz document into a typed
// domain.QuizDocument. Validation is a single pass that collects every
// violation with its wire-level field path, so a broken document can be
// fixed in one iteration.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"

	"quiz-playback-service/internal/domain"
)

// FieldError is one validation issue, addressed by its path in the wire
// document (e.g. "scenes[2].props.options[1].id").
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Path + ": " + e.Message
}

// ValidationError carries every issue found in one validation pass.
type ValidationError struct {
	Issues []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid quiz document"
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("invalid quiz document (%d issues): %s", len(e.Issues), strings.Join(parts, "; "))
}

// Parse validates raw JSON and builds the typed document. It is pure and
// deterministic: the same input always yields the same outcome. On failure
// the returned error is a *ValidationError.
func Parse(raw []byte) (domain.QuizDocument, error) {
	var wire documentWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domain.QuizDocument{}, &ValidationError{Issues: []FieldError{decodeIssue("", err)}}
	}

	v := &validator{}
	doc := v.document(wire)
	if len(v.issues) > 0 {
		return domain.QuizDocument{}, &ValidationError{Issues: v.issues}
	}
	return doc, nil
}

// decodeIssue maps a json decode failure to a field error with the best
// path the decoder can give us.
func decodeIssue(prefix string, err error) FieldError {
	if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
		path := typeErr.Field
		if prefix != "" {
			path = strings.TrimSuffix(prefix+"."+typeErr.Field, ".")
		}
		return FieldError{Path: path, Message: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)}
	}
	return FieldError{Path: prefix, Message: "invalid JSON: " + err.Error()}
}

type documentWire struct {
	VideoID                  *string     `json:"videoId"`
	TotalDurationInSeconds   *float64    `json:"totalDurationInSeconds"`
	BackgroundMusic          *string     `json:"backgroundMusic"`
	GlobalBackgroundImageURL *string     `json:"globalBackgroundImageUrl"`
	GlobalBackgroundVideoURL *string     `json:"globalBackgroundVideoUrl"`
	Scenes                   []sceneWire `json:"scenes"`
}

type sceneWire struct {
	SceneID           *string         `json:"sceneId"`
	DurationInSeconds *float64        `json:"durationInSeconds"`
	SceneType         *string         `json:"sceneType"`
	Variant           *string         `json:"variant"`
	Props             json.RawMessage `json:"props"`
}

type questionPropsWire struct {
	QuestionText           *string      `json:"questionText"`
	CorrectAnswerID        *string      `json:"correctAnswerId"`
	TimerDuration          *float64     `json:"timerDuration"`
	CorrectAnswerReasoning *string      `json:"correctAnswerReasoning"`
	ReferenceImageURL      *string      `json:"referenceImageUrl"`
	TitleText              *string      `json:"titleText"`
	BackgroundURL          *string      `json:"backgroundUrl"`
	BackgroundVideoURL     *string      `json:"backgroundVideoUrl"`
	CrewImageURL           *string      `json:"crewImageUrl"`
	LogoURL                *string      `json:"logoUrl"`
	EnableOverlay          *bool        `json:"enableOverlay"`
	OverlayColor           *string      `json:"overlayColor"`
	Options                []optionWire `json:"options"`
}

type optionWire struct {
	ID       *string `json:"id"`
	Text     *string `json:"text"`
	ImageURL *string `json:"imageUrl"`
}

type introPropsWire struct {
	CharacterName      *string `json:"characterName"`
	HeadingText        *string `json:"headingText"`
	SubheadingText     *string `json:"subheadingText"`
	BackgroundImageURL *string `json:"backgroundImageUrl"`
	BackgroundVideoURL *string `json:"backgroundVideoUrl"`
}

type outroPropsWire struct {
	ScoreText          *string `json:"scoreText"`
	CallToAction       *string `json:"callToAction"`
	BackgroundImageURL *string `json:"backgroundImageUrl"`
	BackgroundVideoURL *string `json:"backgroundVideoUrl"`
}

type validator struct {
	issues []FieldError
}

func (v *validator) addf(path, format string, args ...any) {
	v.issues = append(v.issues, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) document(wire documentWire) domain.QuizDocument {
	doc := domain.QuizDocument{}

	if str(wire.VideoID) == "" {
		v.addf("videoId", "is required and must be non-empty")
	} else {
		doc.VideoID = *wire.VideoID
	}

	if wire.TotalDurationInSeconds == nil {
		v.addf("totalDurationInSeconds", "is required")
	} else if *wire.TotalDurationInSeconds <= 0 {
		v.addf("totalDurationInSeconds", "must be positive")
	} else {
		doc.TotalDurationInSeconds = *wire.TotalDurationInSeconds
	}

	doc.BackgroundMusic = v.mediaURL("backgroundMusic", wire.BackgroundMusic)
	doc.GlobalBackgroundImageURL = v.mediaURL("globalBackgroundImageUrl", wire.GlobalBackgroundImageURL)
	doc.GlobalBackgroundVideoURL = v.mediaURL("globalBackgroundVideoUrl", wire.GlobalBackgroundVideoURL)
	if doc.GlobalBackgroundImageURL != "" && doc.GlobalBackgroundVideoURL != "" {
		v.addf("globalBackgroundImageUrl, globalBackgroundVideoUrl", "cannot provide both a global background image and a global background video")
	}

	if len(wire.Scenes) == 0 {
		v.addf("scenes", "must contain at least one scene")
		return doc
	}

	seenIDs := make(map[string]int, len(wire.Scenes))
	doc.Scenes = make([]domain.Scene, 0, len(wire.Scenes))
	for i, sw := range wire.Scenes {
		path := fmt.Sprintf("scenes[%d]", i)
		scene := v.scene(path, sw)
		if scene.SceneID != "" {
			if prev, dup := seenIDs[scene.SceneID]; dup {
				v.addf(path+".sceneId", "duplicates sceneId %q at scenes[%d]", scene.SceneID, prev)
			} else {
				seenIDs[scene.SceneID] = i
			}
		}
		doc.Scenes = append(doc.Scenes, scene)
	}
	return doc
}

func (v *validator) scene(path string, wire sceneWire) domain.Scene {
	scene := domain.Scene{}

	if str(wire.SceneID) == "" {
		v.addf(path+".sceneId", "is required and must be non-empty")
	} else {
		scene.SceneID = *wire.SceneID
	}

	if wire.DurationInSeconds == nil {
		v.addf(path+".durationInSeconds", "is required")
	} else if *wire.DurationInSeconds <= 0 {
		v.addf(path+".durationInSeconds", "must be positive")
	} else {
		scene.DurationInSeconds = *wire.DurationInSeconds
	}

	if wire.Variant == nil {
		v.addf(path+".variant", "is required")
		return scene
	}
	variant := domain.Variant(*wire.Variant)
	expectedType, known := variant.SceneType()
	if !known {
		v.addf(path+".variant", "unrecognized variant %q", *wire.Variant)
		return scene
	}
	scene.Variant = variant
	scene.SceneType = expectedType

	if wire.SceneType == nil {
		v.addf(path+".sceneType", "is required")
	} else if domain.SceneType(*wire.SceneType) != expectedType {
		v.addf(path+".sceneType", "must be %q for variant %q, got %q", expectedType, variant, *wire.SceneType)
	}

	if len(wire.Props) == 0 || string(wire.Props) == "null" {
		v.addf(path+".props", "is required")
		return scene
	}

	switch variant {
	case domain.VariantIntroV1:
		scene.Intro = v.introProps(path+".props", wire.Props)
	case domain.VariantOutroV1:
		scene.Outro = v.outroProps(path+".props", wire.Props)
	default:
		scene.Question = v.questionProps(path+".props", wire.Props, variant)
	}
	return scene
}

func (v *validator) introProps(path string, raw json.RawMessage) *domain.IntroProps {
	var wire introPropsWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		v.issues = append(v.issues, decodeIssue(path, err))
		return nil
	}
	props := &domain.IntroProps{
		CharacterName:      str(wire.CharacterName),
		HeadingText:        str(wire.HeadingText),
		SubheadingText:     str(wire.SubheadingText),
		BackgroundImageURL: v.mediaURL(path+".backgroundImageUrl", wire.BackgroundImageURL),
		BackgroundVideoURL: v.mediaURL(path+".backgroundVideoUrl", wire.BackgroundVideoURL),
	}
	v.backgroundExclusive(path, "backgroundImageUrl", props.BackgroundImageURL, props.BackgroundVideoURL)
	return props
}

func (v *validator) outroProps(path string, raw json.RawMessage) *domain.OutroProps {
	var wire outroPropsWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		v.issues = append(v.issues, decodeIssue(path, err))
		return nil
	}
	props := &domain.OutroProps{
		ScoreText:          str(wire.ScoreText),
		CallToAction:       str(wire.CallToAction),
		BackgroundImageURL: v.mediaURL(path+".backgroundImageUrl", wire.BackgroundImageURL),
		BackgroundVideoURL: v.mediaURL(path+".backgroundVideoUrl", wire.BackgroundVideoURL),
	}
	if props.ScoreText == "" {
		v.addf(path+".scoreText", "is required and must be non-empty")
	}
	if props.CallToAction == "" {
		v.addf(path+".callToAction", "is required and must be non-empty")
	}
	v.backgroundExclusive(path, "backgroundImageUrl", props.BackgroundImageURL, props.BackgroundVideoURL)
	return props
}

func (v *validator) questionProps(path string, raw json.RawMessage, variant domain.Variant) *domain.QuestionProps {
	var wire questionPropsWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		v.issues = append(v.issues, decodeIssue(path, err))
		return nil
	}

	props := &domain.QuestionProps{
		QuestionText:           str(wire.QuestionText),
		CorrectAnswerReasoning: str(wire.CorrectAnswerReasoning),
		TitleText:              str(wire.TitleText),
		ReferenceImageURL:      v.mediaURL(path+".referenceImageUrl", wire.ReferenceImageURL),
		BackgroundURL:          v.mediaURL(path+".backgroundUrl", wire.BackgroundURL),
		BackgroundVideoURL:     v.mediaURL(path+".backgroundVideoUrl", wire.BackgroundVideoURL),
		CrewImageURL:           v.mediaURL(path+".crewImageUrl", wire.CrewImageURL),
		LogoURL:                v.mediaURL(path+".logoUrl", wire.LogoURL),
		OverlayColor:           domain.DefaultOverlayColor,
	}

	switch variant {
	case domain.VariantPinkGridQuizV2:
		if props.QuestionText == "" && props.ReferenceImageURL == "" {
			v.addf(path+".questionText, "+path+".referenceImageUrl", "must provide either questionText or referenceImageUrl (or both)")
		}
	default:
		if props.QuestionText == "" {
			v.addf(path+".questionText", "is required and must be non-empty")
		}
	}

	if str(wire.CorrectAnswerID) == "" {
		v.addf(path+".correctAnswerId", "is required")
	} else if len(*wire.CorrectAnswerID) != 1 {
		v.addf(path+".correctAnswerId", "must be a single character")
	} else {
		props.CorrectAnswerID = *wire.CorrectAnswerID
	}

	if wire.TimerDuration != nil {
		d := *wire.TimerDuration
		if d < 1 || d != math.Trunc(d) {
			v.addf(path+".timerDuration", "must be a whole number of seconds >= 1")
		} else {
			props.TimerDuration = int(d)
		}
	}

	if wire.EnableOverlay != nil {
		props.EnableOverlay = *wire.EnableOverlay
	}
	if color := str(wire.OverlayColor); color != "" {
		if !strings.HasPrefix(color, "rgba(") {
			v.addf(path+".overlayColor", "must be an rgba(...) color")
		} else {
			props.OverlayColor = color
		}
	}

	v.backgroundExclusive(path, "backgroundUrl", props.BackgroundURL, props.BackgroundVideoURL)

	props.Options = v.options(path+".options", wire.Options, variant)
	if props.CorrectAnswerID != "" && len(props.Options) > 0 {
		if _, ok := props.Option(props.CorrectAnswerID); !ok {
			v.addf(path+".correctAnswerId", "must match the id of one of the options")
		}
	}
	return props
}

func (v *validator) options(path string, wires []optionWire, variant domain.Variant) []domain.Option {
	if len(wires) < 2 || len(wires) > 4 {
		v.addf(path, "must contain between 2 and 4 options, got %d", len(wires))
		if len(wires) == 0 {
			return nil
		}
	}

	seen := make(map[string]int, len(wires))
	options := make([]domain.Option, 0, len(wires))
	for i, ow := range wires {
		optPath := fmt.Sprintf("%s[%d]", path, i)
		opt := domain.Option{Text: str(ow.Text)}

		switch {
		case str(ow.ID) == "":
			v.addf(optPath+".id", "is required")
		case len(*ow.ID) != 1:
			v.addf(optPath+".id", "must be a single character")
		default:
			opt.ID = *ow.ID
			if prev, dup := seen[opt.ID]; dup {
				v.addf(optPath+".id", "duplicates option id %q at %s[%d]", opt.ID, path, prev)
			} else {
				seen[opt.ID] = i
			}
		}

		if variant == domain.VariantPinkGridImageQuiz {
			opt.ImageURL = v.mediaURL(optPath+".imageUrl", ow.ImageURL)
			if opt.ImageURL == "" {
				v.addf(optPath+".imageUrl", "is required for image options")
			}
		} else if opt.Text == "" {
			v.addf(optPath+".text", "is required and must be non-empty")
		}

		options = append(options, opt)
	}
	return options
}

// backgroundExclusive flags a scene that sets both members of a mutually
// exclusive background pair.
func (v *validator) backgroundExclusive(path, imageField, imageURL, videoURL string) {
	if imageURL != "" && videoURL != "" {
		v.addf(path+"."+imageField+", "+path+".backgroundVideoUrl", "cannot provide both a background image and a background video")
	}
}

// mediaURL validates an optional media reference: either an absolute
// http(s) URL or a rooted path like /videos/bg.mp4. Explicit null and
// absence are both treated as unset.
func (v *validator) mediaURL(path string, value *string) string {
	if value == nil || *value == "" {
		return ""
	}
	s := *value
	if strings.HasPrefix(s, "/") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.addf(path, "must be an absolute http(s) URL or a rooted path")
		return ""
	}
	return s
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
