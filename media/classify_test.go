package media

import (
	"io"
	"log/slog"
	"testing"

	"reddit-archive/pkg/archive"
)

const testBase = "https://media.example.com"

func testClassifier(base string) (*Classifier, *archive.Collector) {
	warns := &archive.Collector{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClassifier(base, logger, warns), warns
}

// TestClassifyGalleryOrdering verifies frames sort by their embedded
// two-digit index regardless of listing order.
func TestClassifyGalleryOrdering(t *testing.T) {
	c, _ := testClassifier(testBase)
	records := c.Classify([]string{
		"Images/abc/02.jpg",
		"Images/abc/00.jpg",
		"Images/abc/01.png",
	})

	rec := records["abc"]
	if rec == nil {
		t.Fatal("no record for abc")
	}
	want := []string{
		testBase + "/Images/abc/00.jpg",
		testBase + "/Images/abc/01.png",
		testBase + "/Images/abc/02.jpg",
	}
	if len(rec.Gallery) != len(want) {
		t.Fatalf("gallery = %v, want %v", rec.Gallery, want)
	}
	for i, u := range want {
		if rec.Gallery[i] != u {
			t.Errorf("gallery[%d] = %q, want %q", i, rec.Gallery[i], u)
		}
	}
	if rec.FrameCount != 3 {
		t.Errorf("frame count = %d, want 3", rec.FrameCount)
	}
}

func TestClassifyKeyShapes(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		check func(t *testing.T, records map[string]*archive.MediaRecord)
	}{
		{
			name: "single image",
			key:  "Images/abc.jpg",
			check: func(t *testing.T, records map[string]*archive.MediaRecord) {
				t.Helper()
				rec := records["abc"]
				if rec == nil || len(rec.Images) != 1 || rec.Images[0] != testBase+"/Images/abc.jpg" {
					t.Errorf("record = %+v", rec)
				}
			},
		},
		{
			name: "video",
			key:  "Videos/abc.mp4",
			check: func(t *testing.T, records map[string]*archive.MediaRecord) {
				t.Helper()
				rec := records["abc"]
				if rec == nil || !rec.HasVideo || rec.Video != testBase+"/Videos/abc.mp4" {
					t.Errorf("record = %+v", rec)
				}
			},
		},
		{
			name: "alternate video",
			key:  "RedGiphys/abc.mp4",
			check: func(t *testing.T, records map[string]*archive.MediaRecord) {
				t.Helper()
				rec := records["abc"]
				if rec == nil || !rec.HasAltVideo || rec.AltVideo != testBase+"/RedGiphys/abc.mp4" {
					t.Errorf("record = %+v", rec)
				}
			},
		},
		{
			name: "animated image",
			key:  "Gifs/abc.gif",
			check: func(t *testing.T, records map[string]*archive.MediaRecord) {
				t.Helper()
				rec := records["abc"]
				if rec == nil || !rec.HasAnimated || rec.AnimatedImage != testBase+"/Gifs/abc.gif" {
					t.Errorf("record = %+v", rec)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testClassifier(testBase)
			tt.check(t, c.Classify([]string{tt.key}))
		})
	}
}

func TestClassifyIgnoresUnrecognizedKeys(t *testing.T) {
	c, warns := testClassifier(testBase)
	records := c.Classify([]string{
		"Images/abc/1.jpg",        // index not two digits
		"Images/abc/00.mp4",       // frame with non-image extension
		"Videos/abc.webm",         // wrong extension for Videos
		"Gifs/abc.jpg",            // wrong extension for Gifs
		"Thumbnails/abc.jpg",      // unknown category
		"Images/a/b/c/too/deep.jpg",
		"manifest.json",
	})

	if len(records) != 0 {
		t.Errorf("records = %v, want none", records)
	}
	if warns.Len() != 0 {
		t.Errorf("unrecognized keys produced %d warnings, want silence", warns.Len())
	}
}

func TestClassifyDeduplicatesImages(t *testing.T) {
	c, _ := testClassifier(testBase)
	records := c.Classify([]string{
		"Images/abc.jpg",
		"Images/abc.jpg",
		"Images/abc.png",
	})

	rec := records["abc"]
	if rec == nil {
		t.Fatal("no record for abc")
	}
	want := []string{testBase + "/Images/abc.jpg", testBase + "/Images/abc.png"}
	if len(rec.Images) != 2 || rec.Images[0] != want[0] || rec.Images[1] != want[1] {
		t.Errorf("images = %v, want %v (deduplicated, first-seen order)", rec.Images, want)
	}
}

// TestClassifyMissingBaseWarnsOncePerPost verifies the missing-media-base
// condition surfaces once per affected post, not once per key.
func TestClassifyMissingBaseWarnsOncePerPost(t *testing.T) {
	c, warns := testClassifier("")
	records := c.Classify([]string{
		"Images/p1/00.jpg",
		"Images/p1/01.jpg",
		"Videos/p1.mp4",
		"Images/p2.jpg",
	})

	if warns.Len() != 2 {
		t.Fatalf("got %d warnings, want 1 per affected post: %v", warns.Len(), warns.Warnings())
	}

	rec := records["p1"]
	if rec == nil || rec.FrameCount != 2 || len(rec.Gallery) != 0 || !rec.HasVideo || rec.Video != "" {
		t.Errorf("p1 record = %+v, want recognized media with unresolved URLs", rec)
	}
}
