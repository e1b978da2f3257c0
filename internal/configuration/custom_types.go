package configuration

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// probeMethodHookFunc returns a mapstructure decode hook that normalizes and checks
// drive probe method names.
func probeMethodHookFunc() mapstructure.DecodeHookFuncType {
	probeMethodType := reflect.TypeOf(ProbeMethod(""))

	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if t != probeMethodType || f.Kind() != reflect.String {
			return data, nil
		}

		value := ProbeMethod(strings.ToLower(strings.TrimSpace(data.(string))))
		if len(value) <= 0 || value == ProbeAuto {
			return ProbeAuto, nil
		}
		for _, method := range ProbeMethods {
			if method == value {
				return value, nil
			}
		}
		return nil, fmt.Errorf("unknown probe method '%s', use one of: auto | drivetemp | smart | smartctl | hddtemp", data)
	}
}
