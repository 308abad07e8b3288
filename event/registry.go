package event

import (
	"reflect"
	"slices"
	"strconv"
	"sync"
)

var (
	registryMu    sync.RWMutex
	nameToType    = make(map[string]Type)
	typeToName    = make(map[Type]string)
	typeToPayload = make(map[Type]reflect.Type)
	registryOnce  sync.Once
)

// RegisterType maps a name to a Type and its payload struct type
// payloadInstance should be a pointer to the payload struct (e.g., &SetZoomPayload{})
// Pass nil if the event has no payload
func RegisterType(name string, t Type, payloadInstance any) {
	registryMu.Lock()
	defer registryMu.Unlock()

	nameToType[name] = t
	typeToName[t] = name
	if payloadInstance != nil {
		rt := reflect.TypeOf(payloadInstance)
		if rt.Kind() == reflect.Ptr {
			rt = rt.Elem()
		}
		typeToPayload[t] = rt
	}
}

// LookupType returns the Type registered under name
func LookupType(name string) (Type, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := nameToType[name]
	return t, ok
}

// TypeName returns the registered name, or "" for unknown types
func TypeName(t Type) string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return typeToName[t]
}

// NewPayloadStruct returns a pointer to a zero-value payload for t, nil if it has none
func NewPayloadStruct(t Type) any {
	registryMu.RLock()
	rt, ok := typeToPayload[t]
	registryMu.RUnlock()
	if !ok {
		return nil
	}
	return reflect.New(rt).Interface()
}

// Types returns every registered Type in ascending order
func Types() []Type {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Type, 0, len(typeToName))
	for t := range typeToName {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (t Type) String() string {
	if name := TypeName(t); name != "" {
		return name
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// InitRegistry registers every built-in event; safe to call more than once
func InitRegistry() {
	registryOnce.Do(func() {
		RegisterType("FrameSample", FrameSample, &FrameSamplePayload{})
		RegisterType("TileChanged", TileChanged, &TileChangedPayload{})
		RegisterType("ChunkImagesRebuilt", ChunkImagesRebuilt, &ChunkImagesRebuiltPayload{})
		RegisterType("SaveComplete", SaveComplete, &SaveCompletePayload{})
		RegisterType("SaveFailed", SaveFailed, &SaveFailedPayload{})
		RegisterType("SessionStarted", SessionStarted, &SessionStartedPayload{})
		RegisterType("SetZoom", SetZoom, &SetZoomPayload{})
		RegisterType("ToggleOverlay", ToggleOverlay, nil)
	})
}
