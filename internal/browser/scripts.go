package browser

import (
	"fmt"
	"time"

	"github.com/jakopako/scenecaster/internal/types"
)

const smoothScrollSettle = 600 * time.Millisecond

// isVisible mirrors the usual definition: the element has a box and is not
// hidden through css.
const isVisibleFn = `function isVisible(el) {
  const style = window.getComputedStyle(el);
  if (style.visibility === "hidden" || style.display === "none") return false;
  const r = el.getBoundingClientRect();
  return r.width > 0 && r.height > 0;
}`

var waitConditions = map[types.WaitState]string{
	types.WaitAttached: `!!el`,
	types.WaitDetached: `!el`,
	types.WaitVisible:  `!!el && isVisible(el)`,
	types.WaitHidden:   `!el || !isVisible(el)`,
}

// waitExpression returns a predicate that is truthy once the first
// element matching selector is in state.
func waitExpression(selector string, state types.WaitState) (string, error) {
	cond, ok := waitConditions[state]
	if !ok {
		return "", fmt.Errorf("unknown wait state %q", state)
	}
	return fmt.Sprintf(`(() => {
  %s
  const el = document.querySelector(%s);
  return %s;
})()`, isVisibleFn, jsString(selector), cond), nil
}

func clickTargetScript(selector string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return {found: false};
  el.scrollIntoView({block: "center", inline: "center", behavior: "instant"});
  const r = el.getBoundingClientRect();
  const x = r.left + r.width / 2, y = r.top + r.height / 2;
  const hit = document.elementFromPoint(x, y);
  const ok = !!hit && (hit === el || el.contains(hit));
  let desc = "";
  if (hit && !ok) {
    desc = "<" + hit.tagName.toLowerCase();
    if (hit.id) desc += ' id="' + hit.id + '"';
    if (typeof hit.className === "string" && hit.className) desc += ' class="' + hit.className + '"';
    desc += ">";
  }
  return {found: true, x, y, ok, hit: desc};
})()`, jsString(selector))
}

func clearScript(selector string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  el.focus();
  if ("value" in el) {
    el.value = "";
  } else if (el.isContentEditable) {
    el.textContent = "";
  }
  el.dispatchEvent(new Event("input", {bubbles: true}));
  return true;
})()`, jsString(selector))
}

func scrollIntoViewScript(selector string, smooth bool) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  const r = el.getBoundingClientRect();
  if (r.top >= 0 && r.left >= 0 && r.bottom <= window.innerHeight && r.right <= window.innerWidth) return false;
  el.scrollIntoView({block: "center", inline: "nearest", behavior: %s});
  return true;
})()`, jsString(selector), jsString(scrollBehavior(smooth)))
}

func scrollByScript(x, y float64, smooth bool) string {
	return fmt.Sprintf(`(() => { window.scrollBy({left: %g, top: %g, behavior: %s}); return true; })()`,
		x, y, jsString(scrollBehavior(smooth)))
}

func scrollBehavior(smooth bool) string {
	if smooth {
		return "smooth"
	}
	return "instant"
}

const styleElementID = "scenecaster-style"

func styleScript(css string) string {
	return fmt.Sprintf(`(() => {
  const apply = () => {
    if (document.getElementById(%[1]s)) return;
    const s = document.createElement("style");
    s.id = %[1]s;
    s.textContent = %[2]s;
    (document.head || document.documentElement).appendChild(s);
  };
  if (document.readyState === "loading") {
    document.addEventListener("DOMContentLoaded", apply);
  } else {
    apply();
  }
})()`, jsString(styleElementID), jsString(css))
}

func highlightScript(selector, color, id string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  const r = el.getBoundingClientRect();
  const h = document.createElement("div");
  h.id = %s;
  h.style.cssText = [
    "position: fixed",
    "top: " + (r.top - 4) + "px",
    "left: " + (r.left - 4) + "px",
    "width: " + (r.width + 8) + "px",
    "height: " + (r.height + 8) + "px",
    "border: 3px solid " + %s,
    "border-radius: 8px",
    "pointer-events: none",
    "z-index: 999999",
    "animation: scenecaster-pulse 1s ease-in-out infinite",
  ].join(";");
  if (!document.getElementById("scenecaster-highlight-style")) {
    const style = document.createElement("style");
    style.id = "scenecaster-highlight-style";
    style.textContent = "@keyframes scenecaster-pulse { 0%%, 100%% { opacity: 1; transform: scale(1); } 50%% { opacity: 0.6; transform: scale(1.03); } }";
    document.head.appendChild(style);
  }
  document.body.appendChild(h);
  return true;
})()`, jsString(selector), jsString(id), jsString(color))
}

func removeElementScript(id string) string {
	return fmt.Sprintf(`(() => { const el = document.getElementById(%s); if (el) el.remove(); return true; })()`, jsString(id))
}

func boundingBoxScript(selector string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return {found: false};
  const r = el.getBoundingClientRect();
  if (r.width === 0 && r.height === 0) return {found: false};
  return {found: true, x: r.x, y: r.y, width: r.width, height: r.height};
})()`, jsString(selector))
}
