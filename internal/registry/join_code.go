package registry

import "crypto/rand"

// Алфавит кода подключения: заглавные буквы и цифры. Код показывается
// пользователю и вводится вручную, поэтому короткий и регистронезависимый.
const joinCodeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// JoinCodeLength — длина кода подключения.
const JoinCodeLength = 6

// randomJoinCode генерирует код из случайного источника. Байты за границей
// наибольшего кратного длине алфавита отбрасываются, чтобы взятие остатка
// не смещало распределение к началу алфавита.
func randomJoinCode(n int) string {
	const max = byte(255 - (256 % len(joinCodeLetters)))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic(err)
		}

		for _, b := range buf {
			if b <= max {
				out = append(out, joinCodeLetters[int(b)%len(joinCodeLetters)])
				if len(out) == n {
					return string(out)
				}
			}
		}
	}

	return string(out)
}
