package website

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviousAndNext(t *testing.T) {
	c := MustCatalog(smallPages())
	page := func(id PageID) *Page {
		p, ok := c.Page(id)
		require.True(t, ok)
		return p
	}

	tests := []struct {
		name     string
		page     *Page
		wantPrev *Page
		wantNext *Page
	}{
		{"first content page", page("SettingUp"), nil, page("CreatingANewApplication")},
		{"last content page", page("CreatingANewApplication"), page("SettingUp"), nil},
		{"home", page(HomeID), nil, nil},
		{"section", page("GettingStarted"), nil, nil},
		{"not found", page(NotFoundID), nil, nil},
		{"nil", nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev, next := PreviousAndNext(c, tt.page)
			assert.Same(t, tt.wantPrev, prev)
			assert.Same(t, tt.wantNext, next)
		})
	}
}

func TestPreviousAndNextInverse(t *testing.T) {
	c := DefaultCatalog()
	routable := c.Routable()

	for _, p := range routable {
		prev, next := PreviousAndNext(c, p)
		if next != nil {
			back, _ := PreviousAndNext(c, next)
			assert.Same(t, p, back, "prev(next(%s))", p.ID)
		}
		if prev != nil {
			_, fwd := PreviousAndNext(c, prev)
			assert.Same(t, p, fwd, "next(prev(%s))", p.ID)
		}
	}

	first, _ := PreviousAndNext(c, routable[0])
	_, last := PreviousAndNext(c, routable[len(routable)-1])
	assert.Nil(t, first)
	assert.Nil(t, last)
}

func TestPaginationCrossesSections(t *testing.T) {
	c := DefaultCatalog()

	building, _ := c.Page("BuildingForProduction")
	prev, next := PreviousAndNext(c, building)
	require.NotNil(t, prev)
	require.NotNil(t, next)
	assert.Equal(t, PageID("DevelopmentWorkflow"), prev.ID)
	assert.Equal(t, PageID("Learning"), next.ID)

	compose, _ := c.Page("ComposeWorld")
	_, next = PreviousAndNext(c, compose)
	assert.Equal(t, PageID("SettingUp"), next.ID)
}

func TestBreadcrumbs(t *testing.T) {
	c := DefaultCatalog()

	forms, _ := c.Page("Forms")
	var ids []PageID
	for _, p := range Breadcrumbs(c, forms) {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []PageID{HomeID, "DevelopmentGuide", "Forms"}, ids)

	assert.Equal(t, []*Page{c.Home()}, Breadcrumbs(c, c.Home()))
}
