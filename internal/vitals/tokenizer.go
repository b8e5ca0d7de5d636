package vitals

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hejijunhao/vitals/internal/model"
)

// numberRe matches an optionally signed integer or decimal.
var numberRe = regexp.MustCompile(`[-+]?(?:\d+(?:\.\d*)?|\.\d+)`)

// Tokens is the result of scanning a vital-signs blob.
type Tokens struct {
	Values []float64 // every numeric token, in order of appearance
}

// Features returns the first FeatureWidth values. ok is false when the blob
// held fewer tokens than that.
func (t Tokens) Features() (f [model.FeatureWidth]float64, ok bool) {
	if len(t.Values) < model.FeatureWidth {
		return f, false
	}
	copy(f[:], t.Values[:model.FeatureWidth])
	return f, true
}

// Extra returns how many tokens were found beyond FeatureWidth.
func (t Tokens) Extra() int {
	if n := len(t.Values) - model.FeatureWidth; n > 0 {
		return n
	}
	return 0
}

// Tokenize extracts every maximal numeric substring from blob. The text is
// NFKC-normalized first so full-width digits and the Unicode minus sign read
// like their ASCII forms.
func Tokenize(blob string) Tokens {
	s := normalize(blob)
	locs := numberRe.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return Tokens{}
	}

	values := make([]float64, 0, len(locs))
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		// A sign glued to a preceding digit is a range separator ("120-80"), not a sign.
		if isSign(s[start]) && start > 0 && isDigit(s[start-1]) {
			start++
		}
		v, err := strconv.ParseFloat(s[start:end], 64)
		if err != nil {
			continue
		}
		values = append(values, v)
	}
	return Tokens{Values: values}
}

func normalize(s string) string {
	s = norm.NFKC.String(s)
	return strings.ReplaceAll(s, "−", "-")
}

func isSign(b byte) bool  { return b == '-' || b == '+' }
func isDigit(b byte) bool { return b >= '0' && b <= '9' }
