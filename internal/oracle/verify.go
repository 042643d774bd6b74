package oracle

import (
	"context"
	"fmt"
	"strings"
)

const verifyPrompt = `You are verifying if this video shows proper disposal of an item. The item should be disposed of SOMEWHAT according to these instructions: %s

It is ok if they put it in trash OR recycle, as long as they vaguely represent disposing of the very item they described. Be VERY lenient in your verification. If the video shows a reasonable attempt to follow the disposal instructions, even if not EVERYTHING is followed, consider it valid.

If the disposal shown in the video is acceptable, respond with exactly: "[YES]"
If not, respond with exactly: "[NO]" followed by a clear explanation of why the disposal was not acceptable. Write the explanation as a normal sentence without any brackets.`

const (
	tokenYes = "[YES]"
	tokenNo  = "[NO]"
)

// Verdict is the parsed result of a verification request.
type Verdict struct {
	Accepted bool
	Reason   string
	// Malformed is set when the reply started with neither token.
	Malformed bool
}

// Verifier asks a model whether a video shows an item being disposed of.
type Verifier struct {
	Model Model
}

// VerifyRequest holds the media sent for verification.
type VerifyRequest struct {
	Video        []byte
	VideoMIME    string
	Image        []byte
	ImageMIME    string
	Instructions string
}

// Verify sends the video, item image and instructions to the model once.
// Only transport failures are returned; unexpected replies become rejections.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (Verdict, error) {
	parts := []Part{InlinePart(req.Video, req.VideoMIME)}
	if len(req.Image) > 0 {
		parts = append(parts, InlinePart(req.Image, req.ImageMIME))
	}
	parts = append(parts, TextPart(VerifyPrompt(req.Instructions)))

	reply, err := v.Model.Generate(ctx, parts)
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(reply), nil
}

// VerifyPrompt returns the verification prompt for the given disposal instructions.
func VerifyPrompt(instructions string) string {
	return fmt.Sprintf(verifyPrompt, strings.TrimSpace(instructions))
}

// ParseVerdict accepts only replies starting with [YES]. [NO] replies carry the
// text after the token as the reason; anything else is rejected with the raw reply.
func ParseVerdict(reply string) Verdict {
	text := strings.TrimSpace(reply)
	upper := strings.ToUpper(text)

	switch {
	case strings.HasPrefix(upper, tokenYes):
		return Verdict{Accepted: true}
	case strings.HasPrefix(upper, tokenNo):
		reason := strings.TrimSpace(text[len(tokenNo):])
		if reason == "" {
			reason = "The disposal shown in the video was not accepted."
		}
		return Verdict{Reason: reason}
	case text == "":
		return Verdict{Reason: "The verification service returned an empty reply.", Malformed: true}
	default:
		return Verdict{Reason: text, Malformed: true}
	}
}

// Err returns ErrMalformedReply for malformed verdicts, for logging.
func (v Verdict) Err() error {
	if v.Malformed {
		return ErrMalformedReply
	}
	return nil
}
