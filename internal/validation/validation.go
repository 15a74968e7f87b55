// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

// IsValidCardNumber проверяет корректность номера банковской карты по
// алгоритму Луна. Пробелы и дефисы в номере допускаются.
func IsValidCardNumber(number string) bool {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)

	if len(cleaned) < 12 || len(cleaned) > 19 {
		return false
	}

	sum := 0
	double := false

	for i := len(cleaned) - 1; i >= 0; i-- {
		ch := rune(cleaned[i])
		if !unicode.IsDigit(ch) {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}

// IsValidEmail выполняет минимальную проверку формата адреса почты.
func IsValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if !strings.Contains(domain, ".") {
		return false
	}
	return !strings.ContainsAny(email, " \t\n")
}

// IsValidPhone проверяет, что строка похожа на телефонный номер:
// цифры с необязательным ведущим плюсом, от 7 до 15 цифр.
func IsValidPhone(phone string) bool {
	s := phone
	if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if len(s) < 7 || len(s) > 15 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
