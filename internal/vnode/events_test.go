package vnode

import "testing"

func TestTargetsOpen(t *testing.T) {
	t.Parallel()

	v := Key{Device: 1, Inode: 2}
	m := &Message{Event: AuthOpen, Paths: Paths{File: "/etc/secret", FileVnode: &v}}
	targets := m.Targets()
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}
	if !targets[0].IsReadable || targets[0].Vnode == nil || *targets[0].Vnode != v {
		t.Fatalf("unexpected open target: %+v", targets[0])
	}
}

func TestTargetsClone(t *testing.T) {
	t.Parallel()

	v := Key{Device: 1, Inode: 9}
	m := &Message{Event: AuthClone, Paths: Paths{
		Source: "/src/file", SourceVnode: &v,
		TargetDir: "/dst", TargetName: "file",
	}}
	targets := m.Targets()
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if !targets[0].IsReadable || targets[0].Vnode == nil {
		t.Fatalf("clone source should be readable with a vnode: %+v", targets[0])
	}
	if targets[1].IsReadable || targets[1].Vnode != nil {
		t.Fatalf("clone target should not be readable and have no vnode: %+v", targets[1])
	}
	if targets[1].Path != "/dst/file" {
		t.Fatalf("unexpected clone target path: %q", targets[1].Path)
	}
}

func TestTargetsCopyfileWithTargetFile(t *testing.T) {
	t.Parallel()

	v := Key{Device: 1, Inode: 9}
	m := &Message{Event: AuthCopyfile, Paths: Paths{
		Source: "/src", SourceVnode: &v,
		TargetFile: "/dst/file", FileVnode: &v,
		TargetDir: "/dst", TargetName: "file",
	}}
	targets := m.Targets()
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if !targets[1].IsReadable || targets[1].Vnode == nil {
		t.Fatalf("copyfile target_file should be readable with a vnode when present: %+v", targets[1])
	}
}

func TestTargetsCopyfileWithoutTargetFile(t *testing.T) {
	t.Parallel()

	m := &Message{Event: AuthCopyfile, Paths: Paths{
		Source: "/src", TargetDir: "/dst", TargetName: "file",
	}}
	targets := m.Targets()
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if targets[1].IsReadable || targets[1].Vnode != nil {
		t.Fatalf("copyfile fallback target should not be readable: %+v", targets[1])
	}
}

func TestTargetsRenameExisting(t *testing.T) {
	t.Parallel()

	m := &Message{Event: AuthRename, Paths: Paths{
		Source: "/a", ExistingFile: "/b",
	}}
	targets := m.Targets()
	if len(targets) != 2 || targets[1].Path != "/b" {
		t.Fatalf("unexpected rename targets: %+v", targets)
	}
}

func TestTargetsTruncatedDropped(t *testing.T) {
	t.Parallel()

	m := &Message{Event: AuthClone, Paths: Paths{
		Source: "/src", TargetDir: "/dst", TargetName: "file",
		Truncated: map[string]bool{"source": true},
	}}
	targets := m.Targets()
	if len(targets) != 1 {
		t.Fatalf("expected only the non-truncated target, got %d", len(targets))
	}
	if targets[0].Path != "/dst/file" {
		t.Fatalf("unexpected surviving target: %+v", targets[0])
	}
}

func TestTargetsExchangedata(t *testing.T) {
	t.Parallel()

	m := &Message{Event: AuthExchangedata, Paths: Paths{File1: "/a", File2: "/b"}}
	targets := m.Targets()
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	for _, tg := range targets {
		if tg.IsReadable || tg.Vnode != nil {
			t.Fatalf("exchangedata targets must not be readable or carry vnodes: %+v", tg)
		}
	}
}
