package resolver

import (
	"testing"

	"quiz-playback-service/internal/domain"
)

func TestBackgroundPrecedence(t *testing.T) {
	tests := []struct {
		name        string
		sceneImage  string
		sceneVideo  string
		globalImage string
		globalVideo string
		want        Resolved
	}{
		{
			name: "nothing set resolves to none",
			want: Resolved{},
		},
		{
			name:        "global image alone",
			globalImage: "/images/global.png",
			want:        Resolved{ImageURL: "/images/global.png"},
		},
		{
			name:        "global video alone",
			globalVideo: "/videos/global.mp4",
			want:        Resolved{VideoURL: "/videos/global.mp4"},
		},
		{
			name:        "scene image beats global image",
			sceneImage:  "/images/scene.png",
			globalImage: "/images/global.png",
			want:        Resolved{ImageURL: "/images/scene.png"},
		},
		{
			name:        "scene video beats global video",
			sceneVideo:  "/videos/scene.mp4",
			globalVideo: "/videos/global.mp4",
			want:        Resolved{VideoURL: "/videos/scene.mp4"},
		},
		{
			name:        "global video beats scene image",
			sceneImage:  "/images/scene.png",
			globalVideo: "/videos/global.mp4",
			want:        Resolved{VideoURL: "/videos/global.mp4"},
		},
		{
			name:        "scene video beats global image",
			sceneVideo:  "/videos/scene.mp4",
			globalImage: "/images/global.png",
			want:        Resolved{VideoURL: "/videos/scene.mp4"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			scene := domain.Scene{
				SceneID:   "q-1",
				SceneType: domain.SceneTypeQnA,
				Variant:   domain.VariantPinkGridQuiz,
				Question: &domain.QuestionProps{
					BackgroundURL:      tc.sceneImage,
					BackgroundVideoURL: tc.sceneVideo,
				},
			}
			doc := domain.QuizDocument{
				GlobalBackgroundImageURL: tc.globalImage,
				GlobalBackgroundVideoURL: tc.globalVideo,
			}

			got := Background(scene, doc)
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestBackgroundUsesIntroAndOutroProps(t *testing.T) {
	doc := domain.QuizDocument{GlobalBackgroundImageURL: "/images/global.png"}

	intro := domain.Scene{
		SceneType: domain.SceneTypeIntro,
		Variant:   domain.VariantIntroV1,
		Intro:     &domain.IntroProps{BackgroundVideoURL: "/videos/intro.mp4"},
	}
	if got := Background(intro, doc); got.VideoURL != "/videos/intro.mp4" {
		t.Fatalf("intro scene video not picked up: %+v", got)
	}

	outro := domain.Scene{
		SceneType: domain.SceneTypeOutro,
		Variant:   domain.VariantOutroV1,
		Outro:     &domain.OutroProps{BackgroundImageURL: "/images/outro.png"},
	}
	if got := Background(outro, doc); got.ImageURL != "/images/outro.png" {
		t.Fatalf("outro scene image not picked up: %+v", got)
	}
}

func TestResolvedEqualAndEmpty(t *testing.T) {
	a := Resolved{VideoURL: "/videos/a.mp4"}
	b := Resolved{VideoURL: "/videos/a.mp4"}
	if !a.Equal(b) {
		t.Fatalf("identical resolutions should compare equal")
	}
	if a.Empty() {
		t.Fatalf("resolution with a video is not empty")
	}
	if !(Resolved{}).Empty() {
		t.Fatalf("zero resolution should be empty")
	}
}
