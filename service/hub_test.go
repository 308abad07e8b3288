package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

type fakeService struct {
	name     string
	deps     []string
	initErr  error
	startErr error
	log      *[]string
}

func (f *fakeService) Name() string           { return f.name }
func (f *fakeService) Dependencies() []string { return f.deps }

func (f *fakeService) Init() error {
	*f.log = append(*f.log, "init:"+f.name)
	return f.initErr
}

func (f *fakeService) Start() error {
	*f.log = append(*f.log, "start:"+f.name)
	return f.startErr
}

func (f *fakeService) Stop() error {
	*f.log = append(*f.log, "stop:"+f.name)
	return nil
}

func newHub() *Hub {
	logger, _ := test.NewNullLogger()
	return NewHub(logger)
}

func TestLifecycleOrder(t *testing.T) {
	var calls []string
	h := newHub()
	h.Register(&fakeService{name: "debug", deps: []string{"persistence"}, log: &calls})
	h.Register(&fakeService{name: "persistence", log: &calls})
	h.Register(&fakeService{name: "audio", log: &calls})

	if err := h.InitAll(); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if err := h.StartAll(); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	h.StopAll()

	want := "init:audio,init:persistence,init:debug," +
		"start:audio,start:persistence,start:debug," +
		"stop:debug,stop:persistence,stop:audio"
	if got := strings.Join(calls, ","); got != want {
		t.Errorf("calls =\n%s\nwant\n%s", got, want)
	}
}

func TestInitFailureRollsBack(t *testing.T) {
	var calls []string
	h := newHub()
	h.Register(&fakeService{name: "a", log: &calls})
	h.Register(&fakeService{name: "b", deps: []string{"a"}, initErr: errors.New("port in use"), log: &calls})

	err := h.InitAll()
	if err == nil || !strings.Contains(err.Error(), "port in use") {
		t.Fatalf("InitAll err = %v", err)
	}
	if got := strings.Join(calls, ","); got != "init:a,init:b,stop:a" {
		t.Errorf("calls = %s", got)
	}
}

func TestStartFailureStopsInitialized(t *testing.T) {
	var calls []string
	h := newHub()
	h.Register(&fakeService{name: "a", log: &calls})
	h.Register(&fakeService{name: "b", deps: []string{"a"}, startErr: errors.New("no speaker"), log: &calls})

	h.InitAll()
	if err := h.StartAll(); err == nil {
		t.Fatal("StartAll succeeded")
	}
	if got := strings.Join(calls, ","); got != "init:a,init:b,start:a,start:b,stop:b,stop:a" {
		t.Errorf("calls = %s", got)
	}
}

func TestRegistrationErrors(t *testing.T) {
	var calls []string
	h := newHub()
	if err := h.Register(&fakeService{name: "a", log: &calls}); err != nil {
		t.Fatal(err)
	}
	if err := h.Register(&fakeService{name: "a", log: &calls}); err == nil {
		t.Error("duplicate registration accepted")
	}

	h.Register(&fakeService{name: "b", deps: []string{"ghost"}, log: &calls})
	if err := h.InitAll(); err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Errorf("InitAll err = %v, want unregistered dependency", err)
	}
}

func TestCycleDetected(t *testing.T) {
	var calls []string
	h := newHub()
	h.Register(&fakeService{name: "a", deps: []string{"b"}, log: &calls})
	h.Register(&fakeService{name: "b", deps: []string{"a"}, log: &calls})
	if err := h.InitAll(); err == nil {
		t.Error("cycle not detected")
	}
}

func TestMustGet(t *testing.T) {
	var calls []string
	h := newHub()
	h.Register(&fakeService{name: "a", log: &calls})

	if got := MustGet[*fakeService](h, "a"); got.name != "a" {
		t.Errorf("MustGet = %v", got)
	}
	defer func() {
		if recover() == nil {
			t.Error("MustGet of missing service did not panic")
		}
	}()
	MustGet[*fakeService](h, "missing")
}
