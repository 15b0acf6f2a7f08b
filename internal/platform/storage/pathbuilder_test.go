package storage

import "testing"

func TestBuildDesignPath(t *testing.T) {
	path, err := BuildDesignPath(DesignPathParams{
		Prefix:   "designs",
		UserID:   "user123",
		FileID:   "01J8ZC4D9M",
		FileName: "logo.PNG",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "designs/user123/01J8ZC4D9M.png"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildDesignPathDefaultsPrefix(t *testing.T) {
	path, err := BuildDesignPath(DesignPathParams{
		UserID:   "user123",
		FileID:   "file456",
		FileName: "artwork.pdf",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "designs/user123/file456.pdf"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildDesignPathWithoutExtension(t *testing.T) {
	path, err := BuildDesignPath(DesignPathParams{
		UserID:   "user123",
		FileID:   "file456",
		FileName: "artwork",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "designs/user123/file456" {
		t.Fatalf("unexpected path: %s", path)
	}
}

func TestBuildDesignPathRejectsInvalidSegment(t *testing.T) {
	cases := []DesignPathParams{
		{UserID: "../bad", FileID: "file", FileName: "a.png"},
		{UserID: "user", FileID: "a/b", FileName: "a.png"},
		{UserID: "", FileID: "file", FileName: "a.png"},
	}
	for _, params := range cases {
		if _, err := BuildDesignPath(params); err == nil {
			t.Fatalf("expected error for params %+v", params)
		}
	}
}

func TestPublicURLEscapesSegments(t *testing.T) {
	client, err := NewClient("inkwell-designs", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := client.PublicURL("designs/user 1/file.png")
	expected := "https://storage.googleapis.com/inkwell-designs/designs/user%201/file.png"
	if got != expected {
		t.Fatalf("expected %s, got %s", expected, got)
	}
}

func TestPublicURLUsesBaseOverride(t *testing.T) {
	client, err := NewClient("inkwell-designs", "https://cdn.inkwell.example/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := client.PublicURL("designs/user1/file.png")
	if got != "https://cdn.inkwell.example/designs/user1/file.png" {
		t.Fatalf("unexpected url: %s", got)
	}
}
