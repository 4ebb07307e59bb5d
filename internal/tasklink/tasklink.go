// Package tasklink maps completed checklist tasks to the requisition
// transition they trigger. The table is fixed; task kinds form a closed enum
// rather than free-form tags so an unknown kind cannot dispatch anything.
package tasklink

import "hireline/internal/stage"

type Kind int

const (
	KindNone Kind = iota
	KindRegisterRequisition
	KindPublishCampaign
)

const (
	TagRegisterRequisition = "register-requisition"
	TagPublishCampaign     = "publish-campaign"
)

// ParseKind decodes a task's kind tag. Unknown or empty tags resolve to
// KindNone, which never triggers a requisition effect.
func ParseKind(tag string) Kind {
	switch tag {
	case TagRegisterRequisition:
		return KindRegisterRequisition
	case TagPublishCampaign:
		return KindPublishCampaign
	}
	return KindNone
}

func (k Kind) Tag() string {
	switch k {
	case KindRegisterRequisition:
		return TagRegisterRequisition
	case KindPublishCampaign:
		return TagPublishCampaign
	}
	return ""
}

// Link is one row of the trigger table: the stage the requisition moves to
// and the follow-up task spawned alongside, if any.
type Link struct {
	Kind          Kind
	TargetStage   string
	FollowUpKind  Kind
	FollowUpTitle string
}

var links = map[Kind]Link{
	KindRegisterRequisition: {
		Kind:          KindRegisterRequisition,
		TargetStage:   stage.Registered,
		FollowUpKind:  KindPublishCampaign,
		FollowUpTitle: "Publish recruitment campaign",
	},
	KindPublishCampaign: {
		Kind:        KindPublishCampaign,
		TargetStage: stage.InSelection,
	},
}

// Resolve returns the link for a task kind, and whether one exists.
func Resolve(k Kind) (Link, bool) {
	l, ok := links[k]
	return l, ok
}

// Triggers reports whether completing a task with this kind has a
// requisition side effect.
func Triggers(tag string) bool {
	_, ok := links[ParseKind(tag)]
	return ok
}
