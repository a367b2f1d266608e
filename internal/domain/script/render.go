package script

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rpggio/flowscribe/internal/domain/action"
)

// Renderer turns a recorded flow into source code for one language.
// Output depends only on the flow name and its actions.
type Renderer interface {
	Language() Language
	Render(flowName string, actions []action.RecordedAction) (string, error)
}

// DefaultRenderers returns the built-in renderer for every supported language.
func DefaultRenderers() []Renderer {
	return []Renderer{
		javaRenderer{dialect: dialects[Java]},
		pythonRenderer{dialect: dialects[Python]},
		javaScriptRenderer{dialect: dialects[JavaScript]},
	}
}

// step is one action with its locator expression resolved.
type step struct {
	act  action.RecordedAction
	expr string
}

// plan resolves every action's locator expression. A wait is bound to the
// element of the next non-wait action so the script waits for what it is
// about to touch; a trailing wait keeps its own element.
func plan(d Dialect, actions []action.RecordedAction) []step {
	steps := make([]step, len(actions))
	for i, act := range actions {
		target := act.Locator
		if act.Kind() == action.KindWait {
			for _, next := range actions[i+1:] {
				if next.Kind() != action.KindWait {
					target = next.Locator
					break
				}
			}
		}
		steps[i] = step{act: act, expr: d.LocatorExpr(target.Best())}
	}
	return steps
}

func unsupported(act action.RecordedAction) error {
	return fmt.Errorf("%w: action %d has kind %q", ErrInvalidInput, act.ID, act.Kind())
}

func seconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', -1, 64)
}

// lines accumulates indented source.
type lines struct {
	b      strings.Builder
	indent string
}

func (l *lines) add(depth int, format string, args ...any) {
	if format == "" {
		l.b.WriteByte('\n')
		return
	}
	l.b.WriteString(strings.Repeat(l.indent, depth))
	fmt.Fprintf(&l.b, format, args...)
	l.b.WriteByte('\n')
}

func (l *lines) raw(block string) {
	l.b.WriteString(block)
}

func (l *lines) String() string {
	return l.b.String()
}

type javaRenderer struct {
	dialect Dialect
}

func (r javaRenderer) Language() Language { return Java }

const javaImports = `import io.appium.java_client.AppiumBy;
import io.appium.java_client.AppiumDriver;
import io.appium.java_client.android.AndroidDriver;
import io.appium.java_client.android.options.UiAutomator2Options;
import java.net.URL;
import java.time.Duration;
import java.util.Map;
import org.openqa.selenium.By;
import org.openqa.selenium.WebElement;
import org.openqa.selenium.remote.RemoteWebElement;
import org.openqa.selenium.support.ui.ExpectedConditions;
import org.openqa.selenium.support.ui.WebDriverWait;
import org.testng.Assert;
import org.testng.annotations.AfterMethod;
import org.testng.annotations.BeforeMethod;
import org.testng.annotations.Test;

`

const javaHelpers = `
    private static void swipe(AppiumDriver driver, WebElement element, String direction) {
        driver.executeScript("mobile: swipeGesture", Map.of(
                "elementId", ((RemoteWebElement) element).getId(),
                "direction", direction,
                "percent", 0.75));
    }

    static final class FlutterBy {
        static By key(String value) {
            return AppiumBy.custom("flutter:key:" + value);
        }

        static By semanticsLabel(String value) {
            return AppiumBy.custom("flutter:semanticsLabel:" + value);
        }

        static By text(String value) {
            return AppiumBy.custom("flutter:text:" + value);
        }

        static By type(String value) {
            return AppiumBy.custom("flutter:type:" + value);
        }
    }
}
`

func (r javaRenderer) Render(flowName string, actions []action.RecordedAction) (string, error) {
	d := r.dialect
	fn := d.FunctionName(flowName)

	out := &lines{indent: "    "}
	out.raw(javaImports)
	out.add(0, "public class %s {", d.ClassName(flowName))
	out.add(1, "private AppiumDriver driver;")
	out.add(0, "")
	out.add(1, "@BeforeMethod")
	out.add(1, "public void setUp() throws Exception {")
	out.add(2, `UiAutomator2Options options = new UiAutomator2Options().setAutomationName("Flutter");`)
	out.add(2, `driver = new AndroidDriver(new URL("http://localhost:4723"), options);`)
	out.add(1, "}")
	out.add(0, "")
	out.add(1, "@AfterMethod")
	out.add(1, "public void tearDown() {")
	out.add(2, "if (driver != null) {")
	out.add(3, "driver.quit();")
	out.add(2, "}")
	out.add(1, "}")
	out.add(0, "")
	out.add(1, "@Test")
	out.add(1, "public void runFlow() {")
	out.add(2, "%s(driver);", fn)
	out.add(1, "}")
	out.add(0, "")
	out.add(1, "public static void %s(AppiumDriver driver) {", fn)
	for _, s := range plan(d, actions) {
		switch p := s.act.Payload.(type) {
		case action.Tap:
			out.add(2, "driver.findElement(%s).click();", s.expr)
		case action.EnterText:
			out.add(2, "driver.findElement(%s).sendKeys(%s);", s.expr, d.Quote(p.Text))
		case action.Swipe:
			out.add(2, "swipe(driver, driver.findElement(%s), %s);", s.expr, d.Quote(string(p.Direction)))
		case action.Wait:
			out.add(2, "new WebDriverWait(driver, Duration.ofMillis(%d)).until(ExpectedConditions.visibilityOfElementLocated(%s));", p.TimeoutMs, s.expr)
		case action.Assert:
			switch p.Condition {
			case action.ConditionAbsent:
				out.add(2, "Assert.assertTrue(driver.findElements(%s).isEmpty());", s.expr)
			case action.ConditionTextEquals:
				out.add(2, "Assert.assertEquals(driver.findElement(%s).getText(), %s);", s.expr, d.Quote(p.Expected))
			default:
				out.add(2, "Assert.assertTrue(driver.findElement(%s).isDisplayed());", s.expr)
			}
		default:
			return "", unsupported(s.act)
		}
	}
	out.add(1, "}")
	out.raw(javaHelpers)
	return out.String(), nil
}

type pythonRenderer struct {
	dialect Dialect
}

func (r pythonRenderer) Language() Language { return Python }

const pythonPrelude = `import unittest

from appium import webdriver
from appium.options.common import AppiumOptions
from selenium.webdriver.support import expected_conditions as EC
from selenium.webdriver.support.ui import WebDriverWait


class FlutterBy:
    @staticmethod
    def key(value):
        return ("-flutter key", value)

    @staticmethod
    def semantics_label(value):
        return ("-flutter semantics label", value)

    @staticmethod
    def text(value):
        return ("-flutter text", value)

    @staticmethod
    def type(value):
        return ("-flutter type", value)


def swipe(driver, element, direction):
    driver.execute_script("mobile: swipeGesture", {"elementId": element.id, "direction": direction, "percent": 0.75})


`

func (r pythonRenderer) Render(flowName string, actions []action.RecordedAction) (string, error) {
	d := r.dialect
	fn := d.FunctionName(flowName)

	out := &lines{indent: "    "}
	out.raw(pythonPrelude)
	out.add(0, "def %s(driver):", fn)
	if len(actions) == 0 {
		out.add(1, "pass")
	}
	for _, s := range plan(d, actions) {
		switch p := s.act.Payload.(type) {
		case action.Tap:
			out.add(1, "driver.find_element(*%s).click()", s.expr)
		case action.EnterText:
			out.add(1, "driver.find_element(*%s).send_keys(%s)", s.expr, d.Quote(p.Text))
		case action.Swipe:
			out.add(1, "swipe(driver, driver.find_element(*%s), %s)", s.expr, d.Quote(string(p.Direction)))
		case action.Wait:
			out.add(1, "WebDriverWait(driver, %s).until(EC.visibility_of_element_located(%s))", seconds(p.TimeoutMs), s.expr)
		case action.Assert:
			switch p.Condition {
			case action.ConditionAbsent:
				out.add(1, "assert not driver.find_elements(*%s)", s.expr)
			case action.ConditionTextEquals:
				out.add(1, "assert driver.find_element(*%s).text == %s", s.expr, d.Quote(p.Expected))
			default:
				out.add(1, "assert driver.find_element(*%s).is_displayed()", s.expr)
			}
		default:
			return "", unsupported(s.act)
		}
	}
	out.add(0, "")
	out.add(0, "")
	out.add(0, "class %s(unittest.TestCase):", d.ClassName(flowName))
	out.add(1, "def setUp(self):")
	out.add(2, "options = AppiumOptions()")
	out.add(2, `options.set_capability("platformName", "Android")`)
	out.add(2, `options.set_capability("appium:automationName", "Flutter")`)
	out.add(2, `self.driver = webdriver.Remote("http://localhost:4723", options=options)`)
	out.add(0, "")
	out.add(1, "def tearDown(self):")
	out.add(2, "self.driver.quit()")
	out.add(0, "")
	out.add(1, "def test_flow(self):")
	out.add(2, "%s(self.driver)", fn)
	out.add(0, "")
	out.add(0, "")
	out.add(0, `if __name__ == "__main__":`)
	out.add(1, "unittest.main()")
	return out.String(), nil
}

type javaScriptRenderer struct {
	dialect Dialect
}

func (r javaScriptRenderer) Language() Language { return JavaScript }

const javaScriptPrelude = `const assert = require("node:assert");
const { remote } = require("webdriverio");

const FlutterBy = {
    key(value) {
        return "flutter:key:" + value;
    },
    semanticsLabel(value) {
        return "flutter:semanticsLabel:" + value;
    },
    text(value) {
        return "flutter:text:" + value;
    },
    type(value) {
        return "flutter:type:" + value;
    },
};

async function swipe(driver, selector, direction) {
    const element = await driver.$(selector);
    await driver.execute("mobile: swipeGesture", { elementId: element.elementId, direction, percent: 0.75 });
}

`

func (r javaScriptRenderer) Render(flowName string, actions []action.RecordedAction) (string, error) {
	d := r.dialect
	fn := d.FunctionName(flowName)

	out := &lines{indent: "    "}
	out.raw(javaScriptPrelude)
	out.add(0, "async function %s(driver) {", fn)
	for _, s := range plan(d, actions) {
		switch p := s.act.Payload.(type) {
		case action.Tap:
			out.add(1, "await driver.$(%s).click();", s.expr)
		case action.EnterText:
			out.add(1, "await driver.$(%s).setValue(%s);", s.expr, d.Quote(p.Text))
		case action.Swipe:
			out.add(1, "await swipe(driver, %s, %s);", s.expr, d.Quote(string(p.Direction)))
		case action.Wait:
			out.add(1, "await driver.$(%s).waitForDisplayed({ timeout: %d });", s.expr, p.TimeoutMs)
		case action.Assert:
			switch p.Condition {
			case action.ConditionAbsent:
				out.add(1, "assert.ok(!(await driver.$(%s).isExisting()));", s.expr)
			case action.ConditionTextEquals:
				out.add(1, "assert.strictEqual(await driver.$(%s).getText(), %s);", s.expr, d.Quote(p.Expected))
			default:
				out.add(1, "assert.ok(await driver.$(%s).isDisplayed());", s.expr)
			}
		default:
			return "", unsupported(s.act)
		}
	}
	out.add(0, "}")
	out.add(0, "")
	out.add(0, "async function main() {")
	out.add(1, "const driver = await remote({")
	out.add(2, `hostname: "localhost",`)
	out.add(2, "port: 4723,")
	out.add(2, "capabilities: {")
	out.add(3, `platformName: "Android",`)
	out.add(3, `"appium:automationName": "Flutter",`)
	out.add(2, "},")
	out.add(1, "});")
	out.add(1, "try {")
	out.add(2, "await %s(driver);", fn)
	out.add(1, "} finally {")
	out.add(2, "await driver.deleteSession();")
	out.add(1, "}")
	out.add(0, "}")
	out.add(0, "")
	out.add(0, "module.exports = { %s };", fn)
	out.add(0, "")
	out.add(0, "if (require.main === module) {")
	out.add(1, "main().catch((err) => {")
	out.add(2, "console.error(err);")
	out.add(2, "process.exit(1);")
	out.add(1, "});")
	out.add(0, "}")
	return out.String(), nil
}
