package runtime

func (in *S7Device) DeepCopy() *S7Device {
	if in == nil {
		return nil
	}
	out := *in

	out.Address = in.Address.DeepCopy()
	if in.Units != nil {
		out.Units = append([]string(nil), in.Units...)
	}
	if in.Variables != nil {
		out.Variables = make([]*Variable, len(in.Variables))
		for i, c := range in.Variables {
			copied := *c
			out.Variables[i] = &copied
		}
	}
	return &out
}

func (in *S7Address) DeepCopy() *S7Address {
	if in == nil {
		return nil
	}
	out := *in
	if in.Option != nil {
		option := *in.Option
		out.Option = &option
	}
	return &out
}
