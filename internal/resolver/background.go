// Package resolver computes effective background media for a scene by
// applying scene-level to global-level fallback. It is pure string
// arithmetic over an already-validated document; no I/O happens here.
package resolver

import "quiz-playback-service/internal/domain"

// Resolved is the effective background for one scene. At most one of the
// two URLs is set; both empty means the renderer draws its neutral
// fallback.
type Resolved struct {
	ImageURL string `json:"imageUrl,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`
}

// Empty reports whether no background source resolved at all.
func (r Resolved) Empty() bool {
	return r.ImageURL == "" && r.VideoURL == ""
}

// Equal lets callers diff against the previously resolved background and
// skip reloading unchanged media.
func (r Resolved) Equal(other Resolved) bool {
	return r == other
}

// Background resolves the effective background for a scene. Precedence is
// media-kind-then-scope: every video source is checked before any image
// source, so a global video outranks a scene-level image.
//
//	scene video -> global video -> scene image -> global image -> none
func Background(scene domain.Scene, doc domain.QuizDocument) Resolved {
	if v := scene.BackgroundVideoURL(); v != "" {
		return Resolved{VideoURL: v}
	}
	if doc.GlobalBackgroundVideoURL != "" {
		return Resolved{VideoURL: doc.GlobalBackgroundVideoURL}
	}
	if img := scene.BackgroundImageURL(); img != "" {
		return Resolved{ImageURL: img}
	}
	if doc.GlobalBackgroundImageURL != "" {
		return Resolved{ImageURL: doc.GlobalBackgroundImageURL}
	}
	return Resolved{}
}

// Music returns the background music URL for the document. Music is only
// configured globally; scenes do not override it.
func Music(doc domain.QuizDocument) string {
	return doc.BackgroundMusic
}
