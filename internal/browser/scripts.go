package browser

import (
	"encoding/json"
	"fmt"
)

// leafByTextJS finds the first element without child elements whose trimmed
// text equals the argument.
const leafByTextJS = `(label) => Array.from(document.querySelectorAll('*'))
	.find(el => el.childElementCount === 0 && (el.innerText || '').trim() === label)`

const clickableTextsScript = `Array.from(document.querySelectorAll('a, button'))
	.map(el => (el.innerText || '').trim())
	.filter(t => t.length > 0)`

func scrollSelectorScript(selector string) string {
	return fmt.Sprintf(`(() => { document.querySelector(%s)?.scrollIntoView(); return true; })()`, jsString(selector))
}

func scrollTextScript(text string) string {
	return fmt.Sprintf(`(() => { (%s)(%s)?.scrollIntoView(); return true; })()`, leafByTextJS, jsString(text))
}

// clickByTextScript clicks the first link or button containing any caption,
// case-insensitively, and reports whether it found one.
func clickByTextScript(texts []string) string {
	return fmt.Sprintf(`(() => {
	const wanted = %s.map(t => t.toLowerCase());
	const el = Array.from(document.querySelectorAll('a, button')).find(el => {
		const text = (el.innerText || '').trim().toLowerCase();
		return text.length > 0 && wanted.some(w => text.includes(w));
	});
	if (!el) return false;
	el.click();
	return true;
})()`, jsValue(texts))
}

func jsString(s string) string {
	return jsValue(s)
}

func jsValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}
