// [Profiler] adds runtime profiling to the etl binary.
//
// It supports CPU, heap, and goroutine profiles through command-line flags.
//
// Typical usage wraps command execution with profiler lifecycle methods:
//
//	profiler := profiler.New()
//
//	rootCmd := &cobra.Command{
//	    PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
//	        return profiler.Start()
//	    },
//	}
//
//	profiler.RegisterFlags(rootCmd.PersistentFlags())
//	err := rootCmd.ExecuteContext(ctx)
//	stopErr := profiler.Stop()
//
// Users can then enable profiling via flags like --cpu-profile=cpu.prof.
package profiler
