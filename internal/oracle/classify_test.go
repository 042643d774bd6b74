package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/erazemk/odpadki/internal/model"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Assessment
	}{
		{
			name:  "well formed",
			reply: "[85] [2.50] [Recyclable] [Rinse and place in blue bin]",
			want:  Assessment{Score: 85, ResaleValue: 2.50, Class: model.ClassRecyclable, Instructions: "Rinse and place in blue bin"},
		},
		{
			name:  "e-waste lowercase with currency",
			reply: "Sure! [70] [$15] [e-waste] [Take it to an electronics drop-off.]",
			want:  Assessment{Score: 70, ResaleValue: 15, Class: model.ClassEWaste, Instructions: "Take it to an electronics drop-off."},
		},
		{
			name:  "garbage",
			reply: "garbage",
			want:  Assessment{Class: model.ClassWaste, Malformed: true},
		},
		{
			name:  "empty",
			reply: "",
			want:  Assessment{Class: model.ClassWaste, Malformed: true},
		},
		{
			name:  "unknown class",
			reply: "[40] [0] [Compost] [Put it in the green bin]",
			want:  Assessment{Score: 40, Class: model.ClassWaste, Instructions: "Put it in the green bin"},
		},
		{
			name:  "missing instructions",
			reply: "[60] [1.25] [Recyclable]",
			want:  Assessment{Score: 60, ResaleValue: 1.25, Class: model.ClassRecyclable, Malformed: true},
		},
		{
			name:  "unparseable numbers",
			reply: "[high] [none] [Recyclable] [Flatten the box]",
			want:  Assessment{Class: model.ClassRecyclable, Instructions: "Flatten the box"},
		},
		{
			name:  "score out of range",
			reply: "[150] [-3] [Recyclable] [x]",
			want:  Assessment{Score: 100, Class: model.ClassRecyclable, Instructions: "x"},
		},
		{
			name:  "score with percent",
			reply: "[85%] [2] [E-Waste] [y]",
			want:  Assessment{Score: 85, ResaleValue: 2, Class: model.ClassEWaste, Instructions: "y"},
		},
	}

	for _, tt := range tests {
		got := ParseClassification(tt.reply)
		if got != tt.want {
			t.Errorf("%s: ParseClassification(%q) = %+v, want %+v", tt.name, tt.reply, got, tt.want)
		}
		if got.Score < 0 || got.Score > 100 {
			t.Errorf("%s: score %d out of range", tt.name, got.Score)
		}
	}
}

func TestClassifierSendsImageAndPrompt(t *testing.T) {
	fake := &Fake{Reply: "[85] [2.50] [Recyclable] [Rinse and place in blue bin]"}
	c := &Classifier{Model: fake}

	got, err := c.Classify(context.Background(), []byte("jpeg"), "image/jpeg", "a plastic bottle")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Class != model.ClassRecyclable || got.Score != 85 {
		t.Errorf("unexpected assessment: %+v", got)
	}

	parts := fake.LastParts()
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0].MIME != "image/jpeg" || string(parts[0].Data) != "jpeg" {
		t.Errorf("first part should be the image, got %+v", parts[0])
	}
	if !strings.Contains(parts[1].Text, "a plastic bottle") {
		t.Error("prompt should embed the description")
	}
}

func TestClassifierPropagatesUnreachable(t *testing.T) {
	fake := &Fake{Err: ErrUnreachable}
	c := &Classifier{Model: fake}

	_, err := c.Classify(context.Background(), []byte("jpeg"), "image/jpeg", "")
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}
