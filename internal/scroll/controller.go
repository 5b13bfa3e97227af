// Package scroll decides when a scrolled list should request its next page.
package scroll

// Position describes a scrolled list in rows.
type Position struct {
	Offset   int // first visible row
	Viewport int // visible rows
	Content  int // total rows
}

// Remaining is the number of rows below the bottom edge of the viewport.
func (p Position) Remaining() int {
	return p.Content - p.Offset - p.Viewport
}

// Status is the part of the feed state the controller consults.
type Status struct {
	IsFetching bool
	ErrorTimes int
}

// Controller is a two-state (idle, loading) trigger for infinite scrolling.
// It is not safe for concurrent use; it belongs to the UI event loop.
type Controller struct {
	Distance     int
	RetryCeiling int
	HasMore      bool

	onLoadMore func()
	loading    bool
	errorTimes int
}

func New(distance, retryCeiling int, onLoadMore func()) *Controller {
	return &Controller{
		Distance:     distance,
		RetryCeiling: retryCeiling,
		HasMore:      true,
		onLoadMore:   onLoadMore,
	}
}

// Check fires the load callback when pos is within Distance rows of the end,
// the controller is idle, more content exists and the error budget is not
// spent. It reports whether the callback ran.
func (c *Controller) Check(pos Position, st Status) bool {
	c.errorTimes = st.ErrorTimes
	if st.IsFetching {
		c.loading = true
	}
	if c.loading || !c.HasMore || c.Frozen() {
		return false
	}
	if pos.Remaining() >= c.Distance {
		return false
	}

	c.loading = true
	if c.onLoadMore != nil {
		c.onLoadMore()
	}
	return true
}

// Sync feeds the outcome of a fetch back into the controller. A status that
// is no longer fetching returns it to idle.
func (c *Controller) Sync(st Status) {
	c.errorTimes = st.ErrorTimes
	c.loading = st.IsFetching
}

// Loading reports whether a triggered fetch has not completed yet.
func (c *Controller) Loading() bool {
	return c.loading
}

// Frozen reports whether the last observed error count reached the retry
// ceiling. Only clearing the counter (a new search or a manual retry) thaws it.
func (c *Controller) Frozen() bool {
	return c.RetryCeiling > 0 && c.errorTimes >= c.RetryCeiling
}
