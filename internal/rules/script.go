package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

const defaultCallTimeout = 100 * time.Millisecond

// Script is a matching rule written in Lua. The script must define a global
// function is_match(items) that receives a 1-based array of item ids and
// returns a boolean. The global feature_size holds the claim size.
//
// Calls are serialized; a script error or timeout counts as "no match".
type Script struct {
	mu          sync.Mutex
	state       *lua.LState
	isMatch     lua.LValue
	size        int
	callTimeout time.Duration
	logger      *zap.Logger
}

// LoadScript reads a rule script from path.
func LoadScript(path string, featureSize int, logger *zap.Logger) (*Script, error) {
	return newScript(featureSize, logger, func(L *lua.LState) error { return L.DoFile(path) })
}

// NewScript compiles a rule script from source.
func NewScript(src string, featureSize int, logger *zap.Logger) (*Script, error) {
	return newScript(featureSize, logger, func(L *lua.LState) error { return L.DoString(src) })
}

func newScript(featureSize int, logger *zap.Logger, load func(*lua.LState) error) (*Script, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	L := lua.NewState()
	L.SetGlobal("feature_size", lua.LNumber(featureSize))
	if err := load(L); err != nil {
		L.Close()
		return nil, fmt.Errorf("load rules script: %w", err)
	}
	fn := L.GetGlobal("is_match")
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("rules script does not define is_match")
	}
	return &Script{
		state:       L,
		isMatch:     fn,
		size:        featureSize,
		callTimeout: defaultCallTimeout,
		logger:      logger.Named("rules"),
	}, nil
}

// IsMatch runs is_match over items.
func (s *Script) IsMatch(items []int) bool {
	if len(items) != s.size {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()
	s.state.SetContext(ctx)
	defer s.state.RemoveContext()

	arg := s.state.NewTable()
	for _, item := range items {
		arg.Append(lua.LNumber(item))
	}
	if err := s.state.CallByParam(lua.P{Fn: s.isMatch, NRet: 1, Protect: true}, arg); err != nil {
		s.logger.Warn("is_match failed", zap.Ints("items", items), zap.Error(err))
		return false
	}
	ret := s.state.Get(-1)
	s.state.Pop(1)
	return lua.LVAsBool(ret)
}

// HasAnyMatch reports whether at least minCount matches can be formed from
// items.
func (s *Script) HasAnyMatch(items []int, minCount int) bool {
	return countMatches(items, s.size, minCount, s.IsMatch)
}

// Close releases the interpreter.
func (s *Script) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Close()
}
