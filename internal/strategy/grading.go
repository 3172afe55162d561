package strategy

import (
	"regexp"
	"strconv"
	"strings"
)

// The submission-review prompt asks the model to append its grade in a
// fixed-format block that is machine-extracted and stripped before the
// text reaches the student.
const gradingInstructions = `
After your feedback, emit your grading in exactly this format:

---GRADING---
grade: <float between 0.0 and 1.0>
status: <int between 0 and 3>
---END GRADING---

Status values: 0 = corrected, 1 = correction necessary, 2 = improvement
possible, 3 = not reviewed. The grading block is removed before the
student sees your message.`

// gradingBlockRe matches the whole grading block for stripping;
// gradeRe/statusRe pull the values out of it.
var (
	gradingBlockRe = regexp.MustCompile(`(?s)---GRADING---.*?---END GRADING---`)
	gradeRe        = regexp.MustCompile(`grade:\s*([0-9]*\.?[0-9]+)`)
	statusRe       = regexp.MustCompile(`status:\s*([0-9]+)`)
)

// extractGrading pulls grade and status out of a completion and returns
// the text with the grading block removed. A missing or malformed block
// leaves grade and status nil, so no grade gets posted.
func extractGrading(text string) (cleaned string, grade *float64, status *int) {
	block := gradingBlockRe.FindString(text)
	if block == "" {
		return text, nil, nil
	}

	cleaned = strings.TrimSpace(gradingBlockRe.ReplaceAllString(text, ""))

	if m := gradeRe.FindStringSubmatch(block); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			v = clampFloat(v, 0, 1)
			grade = &v
		}
	}
	if m := statusRe.FindStringSubmatch(block); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			v = clampInt(v, 0, 3)
			status = &v
		}
	}
	return cleaned, grade, status
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
