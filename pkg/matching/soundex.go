package matching

// soundexCode returns the classic 4-character Soundex code for a single
// lowercase word ("adidas" -> "a332"). Non-ASCII letters are skipped.
// Returns "" for words with no ASCII letters.
func soundexCode(word string) string {
	code := make([]byte, 0, 4)
	var lastDigit byte

	for i := 0; i < len(word); i++ {
		c := word[i]
		if c < 'a' || c > 'z' {
			continue
		}
		d := soundexDigit(c)
		if len(code) == 0 {
			code = append(code, c)
			lastDigit = d
			continue
		}
		switch {
		case d == 0:
			// Vowels and h/w/y reset the run so repeated consonant codes
			// separated by a vowel are encoded twice.
			if c != 'h' && c != 'w' {
				lastDigit = 0
			}
		case d != lastDigit:
			code = append(code, '0'+d)
			lastDigit = d
		}
		if len(code) == 4 {
			break
		}
	}

	if len(code) == 0 {
		return ""
	}
	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

func soundexDigit(c byte) byte {
	switch c {
	case 'b', 'f', 'p', 'v':
		return 1
	case 'c', 'g', 'j', 'k', 'q', 's', 'x', 'z':
		return 2
	case 'd', 't':
		return 3
	case 'l':
		return 4
	case 'm', 'n':
		return 5
	case 'r':
		return 6
	default:
		return 0
	}
}
