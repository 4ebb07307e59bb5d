package tasklink_test

import (
	"testing"

	"hireline/internal/stage"
	"hireline/internal/tasklink"
)

func TestParseKind(t *testing.T) {
	if k := tasklink.ParseKind(tasklink.TagRegisterRequisition); k != tasklink.KindRegisterRequisition {
		t.Fatalf("got %v", k)
	}
	if k := tasklink.ParseKind(tasklink.TagPublishCampaign); k != tasklink.KindPublishCampaign {
		t.Fatalf("got %v", k)
	}
	if k := tasklink.ParseKind("weekly-sync"); k != tasklink.KindNone {
		t.Fatalf("free-form kinds must not trigger, got %v", k)
	}
}

func TestResolveTargets(t *testing.T) {
	link, ok := tasklink.Resolve(tasklink.KindRegisterRequisition)
	if !ok || link.TargetStage != stage.Registered {
		t.Fatalf("register link: %+v ok=%v", link, ok)
	}
	if link.FollowUpKind != tasklink.KindPublishCampaign || link.FollowUpTitle == "" {
		t.Fatalf("register must chain a publish follow-up: %+v", link)
	}
	link, ok = tasklink.Resolve(tasklink.KindPublishCampaign)
	if !ok || link.TargetStage != stage.InSelection {
		t.Fatalf("publish link: %+v ok=%v", link, ok)
	}
	if link.FollowUpKind != tasklink.KindNone {
		t.Fatalf("publish must not chain: %+v", link)
	}
	if _, ok := tasklink.Resolve(tasklink.KindNone); ok {
		t.Fatalf("KindNone must not resolve")
	}
}

func TestTriggers(t *testing.T) {
	if !tasklink.Triggers(tasklink.TagRegisterRequisition) {
		t.Fatal("register-requisition should trigger")
	}
	if tasklink.Triggers("") || tasklink.Triggers("call-hiring-manager") {
		t.Fatal("plain kinds should not trigger")
	}
}
