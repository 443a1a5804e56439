package report

import (
	"fmt"
	"strings"
)

// signaturePhrase marks a report produced by the SAMPO register software.
// Text without it passes through FormatSampo untouched.
const signaturePhrase = "SAMPO Reports"

const itemSeparator = "   ────────────────────────────"

const tableDivider = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// maxItemName bounds item names in the itemized listing; longer names are
// cut to 32 characters plus an ellipsis.
const maxItemName = 35

// FormatSampo re-lays-out a SAMPO register report line by line: section
// labels become emoji-prefixed bold headers, the item table is rendered as
// multi-line blocks and key/value pipe pairs get an emoji chosen by the
// key. Text without the signature phrase is returned unchanged.
func FormatSampo(text string) string {
	if !strings.Contains(text, signaturePhrase) {
		return text
	}

	var out []string
	inTable := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.Contains(line, signaturePhrase) {
			out = append(out, "🏪 **SAMPO REPORTS**")
			continue
		}

		if handled, formatted := formatSection(line); handled {
			out = append(out, formatted)
			continue
		}

		if strings.Count(line, "|") >= 2 {
			parts := splitCells(line)
			if len(parts) >= 3 && parts[0] != "" && parts[1] != "" {
				key, value := parts[0], parts[1]

				// Header row of the item table.
				if key == "№" && strings.Contains(value, "Имя") {
					out = append(out,
						"\n🛒 **ЗВІТ ПО ТОВАРАХ**",
						tableDivider,
						"📋 **СПИСОК ТОВАРІВ:**",
						tableDivider,
					)
					inTable = true
					continue
				}

				if inTable && isDigits(key) {
					out = append(out, formatItem(parts)...)
					continue
				}

				out = append(out, fmt.Sprintf("%s **%s:** `%s`", keyEmoji(key), key, value))
				continue
			}
		}

		// The item-table title is emitted when its header row is seen.
		if line == "Отчет по товарам" {
			continue
		}

		out = append(out, line)
	}

	return strings.Join(out, "\n")
}

// formatSection maps the fixed report section labels to their emoji form.
func formatSection(line string) (bool, string) {
	switch {
	case line == "Отправка по команде пользователя.":
		return true, "📤 Відправка по команді користувача"
	case line == "Фильтр":
		return true, "\n🔍 **ФІЛЬТР**"
	case strings.HasPrefix(line, "Организации:"):
		org := strings.TrimSpace(strings.TrimPrefix(line, "Организации:"))
		return true, fmt.Sprintf("🏢 **Організація:** %s", org)
	case strings.HasPrefix(line, "Склады:"):
		warehouse := strings.TrimSpace(strings.TrimPrefix(line, "Склады:"))
		return true, fmt.Sprintf("🏪 **Склад:** %s", warehouse)
	case line == "Сводный отчет":
		return true, "\n📊 **ЗВЕДЕНИЙ ЗВІТ**"
	case strings.HasPrefix(line, "Период:"):
		period := strings.TrimSpace(strings.TrimPrefix(line, "Период:"))
		return true, fmt.Sprintf("🗓 **Період:** %s", period)
	case line == "ПРОДАЖИ":
		return true, "\n💰 **ПРОДАЖІ**"
	case line == "ВОЗВРАТЫ":
		return true, "\n📉 **ПОВЕРНЕННЯ**"
	}
	return false, ""
}

// formatItem renders one numeric-indexed table row as an itemized block.
func formatItem(parts []string) []string {
	name := cell(parts, 1)
	qty := cell(parts, 2)
	cost := cell(parts, 3)
	profit := cell(parts, 4)

	if runes := []rune(name); len(runes) > maxItemName {
		name = string(runes[:32]) + "..."
	}

	return []string{
		fmt.Sprintf("\n`%2s.` **%s**", parts[0], name),
		fmt.Sprintf("   📦 Кількість: `%s`", qty),
		fmt.Sprintf("   💵 Вартість: `%s`", cost),
		fmt.Sprintf("   📈 Прибуток: `%s`", profit),
		itemSeparator,
	}
}

// keyEmoji picks the emoji for a key/value summary row by keyword.
func keyEmoji(key string) string {
	lower := strings.ToLower(key)
	switch {
	case containsAny(lower, "сумма", "сума"):
		return "💵"
	case containsAny(lower, "скидка", "знижка"):
		return "🏷️"
	case containsAny(lower, "прибыль", "прибуток"):
		return "📈"
	case containsAny(lower, "средний", "середній"):
		return "🧾"
	case containsAny(lower, "к-во", "к-сть", "чеков", "чеків"):
		return "🧾"
	case containsAny(lower, "убыток", "збиток"):
		return "📉"
	}
	return "📊"
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// splitCells splits a pipe-delimited row into trimmed cells.
func splitCells(line string) []string {
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// cell returns the i-th cell or an em dash when the row is short.
func cell(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return "—"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
