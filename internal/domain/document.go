package domain

import "encoding/json"

// SceneType is the coarse category of a scene on the quiz timeline.
type SceneType string

const (
	SceneTypeIntro SceneType = "Intro"
	SceneTypeOutro SceneType = "Outro"
	SceneTypeQnA   SceneType = "QnA"
)

// Variant selects the visual/interaction template of a scene. The set is
// closed: dispatch over it is an exhaustive switch, and an unrecognized tag
// is a validation error.
type Variant string

const (
	VariantIntroV1           Variant = "V1"
	VariantOutroV1           Variant = "OutroV1"
	VariantPinkGridQuiz      Variant = "PinkGridQuiz"
	VariantPinkGridImageQuiz Variant = "PinkGridImageQuiz"
	VariantPinkGridQuizV2    Variant = "PinkGridQuizV2"
	VariantBeigeGridQuiz     Variant = "BeigeGridQuiz"
)

// SceneType returns the scene type a variant belongs to, and whether the
// variant is part of the closed set at all.
func (v Variant) SceneType() (SceneType, bool) {
	switch v {
	case VariantIntroV1:
		return SceneTypeIntro, true
	case VariantOutroV1:
		return SceneTypeOutro, true
	case VariantPinkGridQuiz, VariantPinkGridImageQuiz, VariantPinkGridQuizV2, VariantBeigeGridQuiz:
		return SceneTypeQnA, true
	default:
		return "", false
	}
}

// Known reports whether the variant belongs to the closed set.
func (v Variant) Known() bool {
	_, ok := v.SceneType()
	return ok
}

// DefaultTimerSeconds is the countdown applied to question scenes that do
// not set timerDuration themselves.
const DefaultTimerSeconds = 5

// DefaultOverlayColor is applied when a question scene enables the overlay
// without choosing a color.
const DefaultOverlayColor = "rgba(0, 0, 0, 0.4)"

// QuizDocument is a validated, immutable quiz timeline. At most one of the
// global background image/video URLs is set.
type QuizDocument struct {
	VideoID                  string  `json:"videoId"`
	TotalDurationInSeconds   float64 `json:"totalDurationInSeconds"`
	BackgroundMusic          string  `json:"backgroundMusic,omitempty"`
	GlobalBackgroundImageURL string  `json:"globalBackgroundImageUrl,omitempty"`
	GlobalBackgroundVideoURL string  `json:"globalBackgroundVideoUrl,omitempty"`
	Scenes                   []Scene `json:"scenes"`
}

// Scene is one timed unit of the timeline. Exactly one of the prop pointers
// is non-nil, selected by Variant.
type Scene struct {
	SceneID           string
	SceneType         SceneType
	Variant           Variant
	DurationInSeconds float64

	Intro    *IntroProps
	Outro    *OutroProps
	Question *QuestionProps
}

// IntroProps configures an intro scene.
type IntroProps struct {
	CharacterName      string `json:"characterName,omitempty"`
	HeadingText        string `json:"headingText,omitempty"`
	SubheadingText     string `json:"subheadingText,omitempty"`
	BackgroundImageURL string `json:"backgroundImageUrl,omitempty"`
	BackgroundVideoURL string `json:"backgroundVideoUrl,omitempty"`
}

// OutroProps configures an outro scene.
type OutroProps struct {
	ScoreText          string `json:"scoreText"`
	CallToAction       string `json:"callToAction"`
	BackgroundImageURL string `json:"backgroundImageUrl,omitempty"`
	BackgroundVideoURL string `json:"backgroundVideoUrl,omitempty"`
}

// QuestionProps configures a question/answer scene. Which fields are
// required depends on the variant; the schema package enforces that.
type QuestionProps struct {
	QuestionText           string   `json:"questionText,omitempty"`
	CorrectAnswerID        string   `json:"correctAnswerId"`
	TimerDuration          int      `json:"timerDuration,omitempty"`
	CorrectAnswerReasoning string   `json:"correctAnswerReasoning,omitempty"`
	ReferenceImageURL      string   `json:"referenceImageUrl,omitempty"`
	TitleText              string   `json:"titleText,omitempty"`
	BackgroundURL          string   `json:"backgroundUrl,omitempty"`
	BackgroundVideoURL     string   `json:"backgroundVideoUrl,omitempty"`
	CrewImageURL           string   `json:"crewImageUrl,omitempty"`
	LogoURL                string   `json:"logoUrl,omitempty"`
	EnableOverlay          bool     `json:"enableOverlay"`
	OverlayColor           string   `json:"overlayColor"`
	Options                []Option `json:"options"`
}

// Option is one selectable answer. Text-grid variants require Text, the
// image-grid variant requires ImageURL.
type Option struct {
	ID       string `json:"id"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Option returns the option with the given id.
func (p *QuestionProps) Option(id string) (Option, bool) {
	for _, opt := range p.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// EffectiveTimerSeconds is the countdown length for the scene: the explicit
// timerDuration, the variant default for question scenes, zero otherwise.
func (s Scene) EffectiveTimerSeconds() int {
	if s.Question == nil {
		return 0
	}
	if s.Question.TimerDuration > 0 {
		return s.Question.TimerDuration
	}
	return DefaultTimerSeconds
}

// Interactive reports whether the scene accepts answer selections.
func (s Scene) Interactive() bool {
	return s.SceneType == SceneTypeQnA && s.Question != nil
}

// BackgroundVideoURL is the scene-level background video, if any.
func (s Scene) BackgroundVideoURL() string {
	switch {
	case s.Question != nil:
		return s.Question.BackgroundVideoURL
	case s.Intro != nil:
		return s.Intro.BackgroundVideoURL
	case s.Outro != nil:
		return s.Outro.BackgroundVideoURL
	}
	return ""
}

// BackgroundImageURL is the scene-level background image, if any.
func (s Scene) BackgroundImageURL() string {
	switch {
	case s.Question != nil:
		return s.Question.BackgroundURL
	case s.Intro != nil:
		return s.Intro.BackgroundImageURL
	case s.Outro != nil:
		return s.Outro.BackgroundImageURL
	}
	return ""
}

type sceneJSON struct {
	SceneID           string    `json:"sceneId"`
	DurationInSeconds float64   `json:"durationInSeconds"`
	SceneType         SceneType `json:"sceneType"`
	Variant           Variant   `json:"variant"`
	Props             any       `json:"props"`
}

// MarshalJSON writes the scene back in its wire shape, with props selected
// by variant. Together with schema.Parse this round-trips a document.
func (s Scene) MarshalJSON() ([]byte, error) {
	var props any
	switch {
	case s.Intro != nil:
		props = s.Intro
	case s.Outro != nil:
		props = s.Outro
	case s.Question != nil:
		props = s.Question
	}
	return json.Marshal(sceneJSON{
		SceneID:           s.SceneID,
		DurationInSeconds: s.DurationInSeconds,
		SceneType:         s.SceneType,
		Variant:           s.Variant,
		Props:             props,
	})
}

// SceneResult is the terminal outcome of one scene activation. IsCorrect is
// nil when no answer was given (timeout), which scoring must not count as
// wrong.
type SceneResult struct {
	SceneID   string `json:"sceneId"`
	IsCorrect *bool  `json:"isCorrect"`
}
