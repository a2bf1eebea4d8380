package integration

import (
	"testing"

	"github.com/aslcompile/aslc/ast"
)

func TestAddAndResolve(t *testing.T) {
	m := NewManifest()
	if err := m.Add(Descriptor{
		Name:     "ddb.getItem",
		Resource: "arn:aws:states:::dynamodb:getItem",
		Params:   []string{"TableName", "Key"},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	callee := &ast.Member{Object: &ast.Ident{Name: "ddb"}, Prop: "getItem"}
	integ, ok := m.Resolve(callee)
	if !ok || integ == nil {
		t.Fatalf("expected ddb.getItem to resolve")
	}
}

func TestAddRejectsMissingResource(t *testing.T) {
	m := NewManifest()
	err := m.Add(Descriptor{Name: "ddb.getItem"})
	if err == nil {
		t.Fatalf("expected an error for a descriptor with no resource")
	}
}

func TestAddValidatesSchedule(t *testing.T) {
	m := NewManifest()
	err := m.Add(Descriptor{
		Name:     "reconcile.sweep",
		Resource: "arn:aws:states:::lambda:invoke",
		Schedule: "not a cron expression",
	})
	if err == nil {
		t.Fatalf("expected an error for a malformed schedule")
	}
}

func TestScheduleLookup(t *testing.T) {
	m := NewManifest()
	if err := m.Add(Descriptor{
		Name:     "reconcile.sweep",
		Resource: "arn:aws:states:::lambda:invoke",
		Schedule: "0 0 * * * *",
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, ok := m.Schedule("reconcile.sweep"); !ok {
		t.Fatalf("expected a parsed schedule for reconcile.sweep")
	}
	if _, ok := m.Schedule("nope"); ok {
		t.Fatalf("expected no schedule for an unregistered name")
	}
}
