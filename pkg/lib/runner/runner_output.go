package runner

// Output subscribes to the stdout and stderr of a started process. Both
// channels replay from the beginning and close once the process is reaped.
func (runner *Runner) Output(id string) (<-chan []byte, <-chan []byte, error) {
	pe, err := runner.getProcess(id)
	if err != nil {
		return nil, nil, err
	}

	runner.logger.Debug("subscribing to output", "id", id)
	return pe.stdout.Subscribe(5), pe.stderr.Subscribe(5), nil
}
