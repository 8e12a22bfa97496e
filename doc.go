// Package overlaysink presents decoded video frames through a hardware
// display overlay layer instead of software-blitting them into the
// framebuffer. The display engine scans the frame memory directly, so
// presentation is a descriptor update, not a copy.
//
// The sink is built from small collaborator interfaces (disp.Channel
// for the display controller, physmem.Ops for physically contiguous
// memory, transform.Channel / transform.BlitChannel for the optional
// rotation accelerators), so the hardware bindings stay out of the
// presentation logic and tests run against fakes.
//
// Typical use:
//
//	sink, err := overlaysink.New(overlaysink.Config{
//		Display: displayChannel,
//		Memory:  allocator,
//	})
//	if err != nil { ... }
//	if err := sink.Open(); err != nil { ... }
//	defer sink.Close()
//
//	if err := sink.Prepare(video.FormatI420, 1280, 720); err != nil { ... }
//	for frame := range frames {
//		if err := sink.Show(frame); err != nil { ... }
//	}
package overlaysink
