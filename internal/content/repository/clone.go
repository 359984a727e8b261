package repository

import (
	"reflect"

	"github.com/fansite/contentflow/internal/workflow"
)

// clone returns a copy of it that shares no slices, maps or pointers with it.
func clone[P any](it *workflow.Item[P]) *workflow.Item[P] {
	c := *it
	deepCopy(reflect.ValueOf(&c).Elem())
	return &c
}

// deepCopy replaces every reference reachable from v through exported fields
// with a fresh copy. v must be settable. Unexported fields are left shared,
// which only affects immutable library values such as time.Location.
func deepCopy(v reflect.Value) {
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return
		}
		n := reflect.New(v.Type().Elem())
		n.Elem().Set(v.Elem())
		deepCopy(n.Elem())
		v.Set(n)
	case reflect.Slice:
		if v.IsNil() {
			return
		}
		n := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(n, v)
		for i := 0; i < n.Len(); i++ {
			deepCopy(n.Index(i))
		}
		v.Set(n)
	case reflect.Map:
		if v.IsNil() {
			return
		}
		n := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			val := reflect.New(v.Type().Elem()).Elem()
			val.Set(iter.Value())
			deepCopy(val)
			n.SetMapIndex(iter.Key(), val)
		}
		v.Set(n)
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if f := v.Field(i); f.CanSet() {
				deepCopy(f)
			}
		}
	}
}
