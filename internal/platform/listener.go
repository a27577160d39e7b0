package platform

// Listener receives window events. Any callback may be nil.
type Listener struct {
	Draw      func(w Window)
	Close     func(w Window)
	Destroyed func(w Window)
	Resize    func(w Window, width, height int)
	State     func(w Window, state WindowState)
	Focus     func(w Window, gained bool)

	Key         func(w Window, ev KeyEvent)
	MouseCross  func(w Window, ev MouseCrossEvent)
	MouseMove   func(w Window, ev MouseMoveEvent)
	MouseButton func(w Window, ev MouseButtonEvent)
	MouseWheel  func(w Window, ev MouseWheelEvent)

	TouchBegin  func(w Window, ev TouchEvent)
	TouchUpdate func(w Window, ev TouchEvent)
	TouchEnd    func(w Window, ev TouchEvent)
	TouchCancel func(w Window)

	DndEnter func(w Window, offer DataOffer, x, y int)
	DndMove  func(w Window, x, y int)
	DndLeave func(w Window)
	DndDrop  func(w Window, offer DataOffer)

	SurfaceCreated   func(w Window)
	SurfaceDestroyed func(w Window)
}

// The Fire helpers are safe on a nil Listener and on nil callbacks.

func (l *Listener) FireDraw(w Window) {
	if l != nil && l.Draw != nil {
		l.Draw(w)
	}
}

func (l *Listener) FireClose(w Window) {
	if l != nil && l.Close != nil {
		l.Close(w)
	}
}

func (l *Listener) FireDestroyed(w Window) {
	if l != nil && l.Destroyed != nil {
		l.Destroyed(w)
	}
}

func (l *Listener) FireResize(w Window, width, height int) {
	if l != nil && l.Resize != nil {
		l.Resize(w, width, height)
	}
}

func (l *Listener) FireState(w Window, state WindowState) {
	if l != nil && l.State != nil {
		l.State(w, state)
	}
}

func (l *Listener) FireFocus(w Window, gained bool) {
	if l != nil && l.Focus != nil {
		l.Focus(w, gained)
	}
}

func (l *Listener) FireKey(w Window, ev KeyEvent) {
	if l != nil && l.Key != nil {
		l.Key(w, ev)
	}
}

func (l *Listener) FireMouseCross(w Window, ev MouseCrossEvent) {
	if l != nil && l.MouseCross != nil {
		l.MouseCross(w, ev)
	}
}

func (l *Listener) FireMouseMove(w Window, ev MouseMoveEvent) {
	if l != nil && l.MouseMove != nil {
		l.MouseMove(w, ev)
	}
}

func (l *Listener) FireMouseButton(w Window, ev MouseButtonEvent) {
	if l != nil && l.MouseButton != nil {
		l.MouseButton(w, ev)
	}
}

func (l *Listener) FireMouseWheel(w Window, ev MouseWheelEvent) {
	if l != nil && l.MouseWheel != nil {
		l.MouseWheel(w, ev)
	}
}

func (l *Listener) FireTouchBegin(w Window, ev TouchEvent) {
	if l != nil && l.TouchBegin != nil {
		l.TouchBegin(w, ev)
	}
}

func (l *Listener) FireTouchUpdate(w Window, ev TouchEvent) {
	if l != nil && l.TouchUpdate != nil {
		l.TouchUpdate(w, ev)
	}
}

func (l *Listener) FireTouchEnd(w Window, ev TouchEvent) {
	if l != nil && l.TouchEnd != nil {
		l.TouchEnd(w, ev)
	}
}

func (l *Listener) FireTouchCancel(w Window) {
	if l != nil && l.TouchCancel != nil {
		l.TouchCancel(w)
	}
}

func (l *Listener) FireDndEnter(w Window, offer DataOffer, x, y int) {
	if l != nil && l.DndEnter != nil {
		l.DndEnter(w, offer, x, y)
	}
}

func (l *Listener) FireDndMove(w Window, x, y int) {
	if l != nil && l.DndMove != nil {
		l.DndMove(w, x, y)
	}
}

func (l *Listener) FireDndLeave(w Window) {
	if l != nil && l.DndLeave != nil {
		l.DndLeave(w)
	}
}

func (l *Listener) FireDndDrop(w Window, offer DataOffer) {
	if l != nil && l.DndDrop != nil {
		l.DndDrop(w, offer)
	}
}

func (l *Listener) FireSurfaceCreated(w Window) {
	if l != nil && l.SurfaceCreated != nil {
		l.SurfaceCreated(w)
	}
}

func (l *Listener) FireSurfaceDestroyed(w Window) {
	if l != nil && l.SurfaceDestroyed != nil {
		l.SurfaceDestroyed(w)
	}
}
