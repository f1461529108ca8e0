// Package mocks provides test doubles for the scraper package.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/rendis/sectorscan/internal/model"
)

// MockSearcher is a mock type for the Searcher interface.
type MockSearcher struct {
	mock.Mock
}

// Search provides a mock function with given fields: ctx, keyword, lat, lng, radiusM, maxPages
func (_m *MockSearcher) Search(ctx context.Context, keyword string, lat float64, lng float64, radiusM float64, maxPages int) ([]model.Place, error) {
	ret := _m.Called(ctx, keyword, lat, lng, radiusM, maxPages)

	if len(ret) == 0 {
		panic("no return value specified for Search")
	}

	var r0 []model.Place
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, float64, float64, float64, int) ([]model.Place, error)); ok {
		return rf(ctx, keyword, lat, lng, radiusM, maxPages)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, float64, float64, float64, int) []model.Place); ok {
		r0 = rf(ctx, keyword, lat, lng, radiusM, maxPages)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.Place)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, float64, float64, float64, int) error); ok {
		r1 = rf(ctx, keyword, lat, lng, radiusM, maxPages)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockSearcher creates a new instance of MockSearcher. It also registers a
// cleanup function to assert the mocks expectations.
func NewMockSearcher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSearcher {
	m := &MockSearcher{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
