package submission

import "strings"

func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCPF checks the two mod-11 verification digits of a Brazilian CPF.
// Formatting characters are ignored.
func ValidCPF(s string) bool {
	d := DigitsOnly(s)
	if len(d) != 11 {
		return false
	}

	// 000.000.000-00, 111.111.111-11 и т.д. формально проходят проверку, но невалидны
	if strings.Count(d, d[:1]) == len(d) {
		return false
	}

	return checkDigit(d[:9]) == d[9] && checkDigit(d[:10]) == d[10]
}

func checkDigit(prefix string) byte {
	sum := 0
	weight := len(prefix) + 1
	for i := range len(prefix) {
		sum += int(prefix[i]-'0') * (weight - i)
	}
	rest := sum * 10 % 11
	if rest == 10 {
		rest = 0
	}
	return byte('0' + rest)
}
