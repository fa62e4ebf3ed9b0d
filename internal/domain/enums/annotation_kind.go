package enums

type AnnotationKind string

const (
	AnnotationProfile AnnotationKind = "profile"
	AnnotationPhoto   AnnotationKind = "photo"
	AnnotationPrompt  AnnotationKind = "prompt"
)

func (k AnnotationKind) Valid() bool {
	switch k {
	case AnnotationProfile, AnnotationPhoto, AnnotationPrompt:
		return true
	default:
		return false
	}
}

// RequiresKey reports whether the annotation points at a concrete photo or prompt.
func (k AnnotationKind) RequiresKey() bool {
	return k == AnnotationPhoto || k == AnnotationPrompt
}
