// This file implements the conditional photo requirement rules.
package domain

// IsPhotoMandatory decides whether a photo attachment is currently mandatory
// for an item given its configuration and the recorded answer.
//
// A photo is mandatory if the item carries the legacy always-mandatory flag,
// or if one of its configured trigger tokens matches the current answer,
// either literally (folded token equality) or semantically (both fold into
// the same sentiment bucket, so a "nao" trigger fires for an answer of "Não"
// or "Não Conforme" alike). Unanswered items are never mandatory by value.
//
// Pure function of (item config, answer): recomputing after any answer change
// always matches a fresh evaluation, so offline and online replays of the
// same answers never diverge.
func IsPhotoMandatory(item Item, answer Answer) bool {
	if item.Config.RequirePhotoAlways {
		return true
	}
	if len(item.Config.RequirePhotoOn) == 0 {
		return false
	}

	raw := answer.Value.Raw()
	if !answer.IsAnswered() || raw == "" {
		return false
	}

	folded := FoldToken(raw)
	sentiment := NormalizeAnswer(raw)

	for _, trigger := range item.Config.RequirePhotoOn {
		if FoldToken(trigger) == folded {
			return true
		}
		if s := NormalizeAnswer(trigger); s != SentimentUnknown && s == sentiment {
			return true
		}
	}
	return false
}

// ShouldShowAttachmentField decides whether the attachment affordance should
// be offered at all for the current answer. Not sticky: it must be
// recomputed on every answer change.
func ShouldShowAttachmentField(item Item, answer Answer) bool {
	return item.Config.AllowPhoto || IsPhotoMandatory(item, answer)
}
