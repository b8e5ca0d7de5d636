// Package vitals collects patient vital-sign records from an HTTP endpoint,
// deduplicates them across polling cycles, labels each distinct row with an
// alarm predictor, and writes the result as a predictions dataset.
//
// Quick start:
//
//	v, err := vitals.New(vitals.WithEndpoint("http://localhost:8080/vitals"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer v.Close()
//
//	res, err := v.Batch(ctx, 3) // three polling cycles
//	fmt.Println(res.Path, res.Unique)
//
// Realtime polls until ctx is cancelled and then writes whatever it has
// collected. A Vitals instance may run several sequential runs; each run gets
// its own ID and buffer.
package vitals
