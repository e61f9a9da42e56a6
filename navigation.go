package website

// PreviousAndNext returns the neighbours of p in the pagination sequence
// (routable, non-section pages in display order). Either result may be nil;
// both are nil when p is not part of the sequence (Home, NotFound, sections).
func PreviousAndNext(c *Catalog, p *Page) (prev, next *Page) {
	if c == nil || !c.Contains(p) {
		return nil, nil
	}
	i, ok := c.position[p.ID]
	if !ok {
		return nil, nil
	}
	if i > 0 {
		prev = c.routable[i-1]
	}
	if i < len(c.routable)-1 {
		next = c.routable[i+1]
	}
	return prev, next
}

// Breadcrumbs returns the chain of pages from the top level down to p,
// starting with Home. Home itself yields just [Home].
func Breadcrumbs(c *Catalog, p *Page) []*Page {
	home := c.Home()
	if p == nil || p == home {
		return []*Page{home}
	}
	var chain []*Page
	for q, depth := p, 0; q != nil && depth <= len(c.pages); q, depth = c.ParentOf(q), depth+1 {
		chain = append([]*Page{q}, chain...)
	}
	return append([]*Page{home}, chain...)
}
