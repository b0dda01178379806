package expression

import (
	"fmt"
	"strings"

	"github.com/mulesoft/mule-sub047/component"
)

func operatorEqual(fieldValue, compareValue any) (bool, error) {
	return compareValues(fieldValue, compareValue) == 0, nil
}

func operatorNotEqual(fieldValue, compareValue any) (bool, error) {
	return compareValues(fieldValue, compareValue) != 0, nil
}

func operatorLessThan(fieldValue, compareValue any) (bool, error) {
	return compareValues(fieldValue, compareValue) < 0, nil
}

func operatorLessThanEqual(fieldValue, compareValue any) (bool, error) {
	return compareValues(fieldValue, compareValue) <= 0, nil
}

func operatorGreaterThan(fieldValue, compareValue any) (bool, error) {
	return compareValues(fieldValue, compareValue) > 0, nil
}

func operatorGreaterThanEqual(fieldValue, compareValue any) (bool, error) {
	return compareValues(fieldValue, compareValue) >= 0, nil
}

func operatorContains(fieldValue, compareValue any) (bool, error) {
	return strings.Contains(asString(fieldValue), asString(compareValue)), nil
}

func operatorStartsWith(fieldValue, compareValue any) (bool, error) {
	return strings.HasPrefix(asString(fieldValue), asString(compareValue)), nil
}

func operatorEndsWith(fieldValue, compareValue any) (bool, error) {
	return strings.HasSuffix(asString(fieldValue), asString(compareValue)), nil
}

func operatorRegex(fieldValue, compareValue any) (bool, error) {
	pattern, ok := compareValue.(string)
	if !ok {
		return false, fmt.Errorf("regex pattern must be a string")
	}

	re, err := compileRegex(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(asString(fieldValue)), nil
}

// operatorIsA expects the ancestor chain of an error type as field value
func operatorIsA(fieldValue, compareValue any) (bool, error) {
	chain, ok := fieldValue.([]any)
	if !ok {
		return false, fmt.Errorf("is_a needs an error type, got %T", fieldValue)
	}
	id, err := component.ParseIdentifier(asString(compareValue))
	if err != nil {
		return false, err
	}
	want := id.String()
	for _, t := range chain {
		if asString(t) == want {
			return true, nil
		}
	}
	return false, nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func compareValues(a, b any) int {
	aNum, aIsNum := toFloat64(a)
	bNum, bIsNum := toFloat64(b)

	if aIsNum && bIsNum {
		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		}
		return 0
	}

	aStr, bStr := asString(a), asString(b)
	switch {
	case aStr < bStr:
		return -1
	case aStr > bStr:
		return 1
	}
	return 0
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}
